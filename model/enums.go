package model

// AccountStatus is the lifecycle state of a savings or deposit account.
type AccountStatus int

const (
	StatusSubmittedAndPendingApproval AccountStatus = 100
	StatusApproved                    AccountStatus = 200
	StatusActive                      AccountStatus = 300
	StatusWithdrawnByApplicant        AccountStatus = 400
	StatusRejected                    AccountStatus = 500
	StatusClosed                      AccountStatus = 600
	StatusPrematureClosed             AccountStatus = 700
	StatusMatured                     AccountStatus = 800
)

func (s AccountStatus) String() string {
	switch s {
	case StatusSubmittedAndPendingApproval:
		return "submitted_and_pending_approval"
	case StatusApproved:
		return "approved"
	case StatusActive:
		return "active"
	case StatusWithdrawnByApplicant:
		return "withdrawn_by_applicant"
	case StatusRejected:
		return "rejected"
	case StatusClosed:
		return "closed"
	case StatusPrematureClosed:
		return "premature_closed"
	case StatusMatured:
		return "matured"
	}
	return "invalid"
}

// IsClosed reports whether no further money movement is allowed.
func (s AccountStatus) IsClosed() bool {
	return s == StatusClosed || s == StatusPrematureClosed || s == StatusRejected || s == StatusWithdrawnByApplicant
}

type DepositType int

const (
	DepositTypeSavings      DepositType = 100
	DepositTypeFixedDeposit DepositType = 200
)

func (d DepositType) String() string {
	switch d {
	case DepositTypeSavings:
		return "savings"
	case DepositTypeFixedDeposit:
		return "fixed_deposit"
	}
	return "invalid"
}

type TransactionType int

const (
	TransactionDeposit           TransactionType = 1
	TransactionWithdrawal        TransactionType = 2
	TransactionInterestPosting   TransactionType = 3
	TransactionWithdrawalFee     TransactionType = 4
	TransactionAnnualFee         TransactionType = 5
	TransactionWaiveCharges      TransactionType = 6
	TransactionPayCharge         TransactionType = 7
	TransactionOverdraftInterest TransactionType = 17
	TransactionWithholdTax       TransactionType = 18
)

func (t TransactionType) String() string {
	switch t {
	case TransactionDeposit:
		return "deposit"
	case TransactionWithdrawal:
		return "withdrawal"
	case TransactionInterestPosting:
		return "interest_posting"
	case TransactionWithdrawalFee:
		return "withdrawal_fee"
	case TransactionAnnualFee:
		return "annual_fee"
	case TransactionWaiveCharges:
		return "waive_charges"
	case TransactionPayCharge:
		return "pay_charge"
	case TransactionOverdraftInterest:
		return "overdraft_interest"
	case TransactionWithholdTax:
		return "withhold_tax"
	}
	return "invalid"
}

// IsCredit reports whether the transaction adds to the account balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionDeposit || t == TransactionInterestPosting
}

// IsDebit reports whether the transaction takes money out of the account.
func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionWithdrawal, TransactionWithdrawalFee, TransactionAnnualFee,
		TransactionPayCharge, TransactionOverdraftInterest, TransactionWithholdTax:
		return true
	}
	return false
}

// IsInterest reports whether the transaction was generated by interest posting.
func (t TransactionType) IsInterest() bool {
	return t == TransactionInterestPosting || t == TransactionOverdraftInterest
}

type PeriodFrequency int

const (
	FrequencyDays   PeriodFrequency = 0
	FrequencyWeeks  PeriodFrequency = 1
	FrequencyMonths PeriodFrequency = 2
	FrequencyYears  PeriodFrequency = 3
)

func (f PeriodFrequency) String() string {
	switch f {
	case FrequencyDays:
		return "days"
	case FrequencyWeeks:
		return "weeks"
	case FrequencyMonths:
		return "months"
	case FrequencyYears:
		return "years"
	}
	return "unknown"
}

type CompoundingPeriod int

const (
	CompoundingDaily     CompoundingPeriod = 1
	CompoundingMonthly   CompoundingPeriod = 4
	CompoundingQuarterly CompoundingPeriod = 5
	CompoundingBiAnnual  CompoundingPeriod = 6
	CompoundingAnnual    CompoundingPeriod = 7
)

type PostingPeriod int

const (
	PostingMonthly   PostingPeriod = 4
	PostingQuarterly PostingPeriod = 5
	PostingBiAnnual  PostingPeriod = 6
	PostingAnnual    PostingPeriod = 7
)

type InterestCalculation int

const (
	CalculationDailyBalance        InterestCalculation = 1
	CalculationAverageDailyBalance InterestCalculation = 2
)

type DaysInYear int

const (
	DaysInYear360 DaysInYear = 360
	DaysInYear365 DaysInYear = 365
)

type ChargeTime int

const (
	ChargeSpecifiedDueDate  ChargeTime = 2
	ChargeSavingsActivation ChargeTime = 3
	ChargeSavingsClosure    ChargeTime = 4
	ChargeWithdrawalFee     ChargeTime = 5
	ChargeAnnualFee         ChargeTime = 6
	ChargeMonthlyFee        ChargeTime = 7
	ChargeWeeklyFee         ChargeTime = 11
	ChargePreClosureFee     ChargeTime = 20
)

// IsRecurring reports whether the charge becomes due again after it is paid.
func (c ChargeTime) IsRecurring() bool {
	return c == ChargeAnnualFee || c == ChargeMonthlyFee || c == ChargeWeeklyFee
}

type ChargeCalculation int

const (
	ChargeFlat            ChargeCalculation = 1
	ChargePercentOfAmount ChargeCalculation = 2
)

type ClosureAction int

const (
	ClosureWithdraw          ClosureAction = 100
	ClosureTransferToSavings ClosureAction = 200
	ClosureReinvest          ClosureAction = 300
)

type PenalInterestOn int

const (
	PenalOnWholeTerm               PenalInterestOn = 1
	PenalOnTillPrematureWithdrawal PenalInterestOn = 2
)

type JournalEntryType int

const (
	JournalCredit JournalEntryType = 1
	JournalDebit  JournalEntryType = 2
)
