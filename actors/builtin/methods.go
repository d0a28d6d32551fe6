package builtin

import (
	"github.com/filecoin-project/go-state-types/abi"
)

const (
	MethodSend        = abi.MethodNum(0)
	MethodConstructor = abi.MethodNum(1)
)

var MethodsAccount = struct {
	Constructor   abi.MethodNum
	PubkeyAddress abi.MethodNum
}{MethodConstructor, 2}

var MethodsVesting = struct {
	Constructor                                abi.MethodNum
	CreateVestingSchedule                      abi.MethodNum
	Release                                    abi.MethodNum
	Revoke                                     abi.MethodNum
	Withdraw                                   abi.MethodNum
	Deposit                                    abi.MethodNum
	TransferOwnership                          abi.MethodNum
	GetVestingSchedule                         abi.MethodNum
	GetWithdrawableAmount                      abi.MethodNum
	ComputeNextVestingScheduleIDForHolder      abi.MethodNum
	ComputeVestingScheduleIDForAddressAndIndex abi.MethodNum
	ComputeReleasableAmount                    abi.MethodNum
	GetVestingSchedulesCountByBeneficiary      abi.MethodNum
	GetVestingIDAtIndex                        abi.MethodNum
	GetVestingScheduleByAddressAndIndex        abi.MethodNum
	GetLastVestingScheduleForHolder            abi.MethodNum
	GetVestingSchedulesCount                   abi.MethodNum
	GetVestingSchedulesTotalAmount             abi.MethodNum
	GetToken                                   abi.MethodNum
	GetAdmin                                   abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}

var MethodsToken = struct {
	Constructor  abi.MethodNum
	Mint         abi.MethodNum
	Transfer     abi.MethodNum
	Approve      abi.MethodNum
	TransferFrom abi.MethodNum
	BalanceOf    abi.MethodNum
	Allowance    abi.MethodNum
	TotalSupply  abi.MethodNum
}{MethodConstructor, 2, 3, 4, 5, 6, 7, 8}
