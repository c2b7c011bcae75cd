package ordermonitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLockErrorAlreadyLocked(t *testing.T) {
	o := newTestOrder(1, nil)
	err := classifyLockError(o, "0xAbCd", errors.New("execution reverted: RequestIsLocked(1)"))
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeAlreadyLocked, me.code)
}

func TestClassifyLockErrorInsufficientBalanceSelf(t *testing.T) {
	o := newTestOrder(1, nil)
	self := "0xAbCdEf0000000000000000000000000000dEaD"
	err := classifyLockError(o, self, errors.New("execution reverted: InsufficientBalance(0xabcdef0000000000000000000000000000dead)"))
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeInsufficientBal, me.code)
}

func TestClassifyLockErrorInsufficientBalanceRequestor(t *testing.T) {
	o := newTestOrder(1, nil)
	self := "0xAbCdEf0000000000000000000000000000dEaD"
	err := classifyLockError(o, self, errors.New("execution reverted: InsufficientBalance(0x1111111111111111111111111111111111dead)"))
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeLockTxFailed, me.code)
}

func TestClassifyLockErrorTxnSubmission(t *testing.T) {
	o := newTestOrder(1, nil)
	err := classifyLockError(o, "0xAbCd", errTxnSubmission)
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeLockTxFailed, me.code)
}

func TestClassifyLockErrorTxnConfirmation(t *testing.T) {
	o := newTestOrder(1, nil)
	err := classifyLockError(o, "0xAbCd", errTxnConfirmation)
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeLockTxNotConfirm, me.code)
}

func TestClassifyLockErrorUnexpected(t *testing.T) {
	o := newTestOrder(1, nil)
	err := classifyLockError(o, "0xAbCd", errors.New("connection refused"))
	var me *MonitorError
	assert.ErrorAs(t, err, &me)
	assert.Equal(t, codeUnexpected, me.code)
}
