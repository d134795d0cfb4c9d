package savings

import (
	"fmt"
	"time"

	"go-savings-api/interest"
	"go-savings-api/model"

	"github.com/shopspring/decimal"
)

const chargeCode = "error.msg.savingsaccountcharge"

// NewCharge validates a charge request.
func NewCharge(req model.ChargeRequest) (model.Charge, error) {
	c := model.Charge{
		Name:        req.Name,
		TimeType:    req.TimeType,
		Calculation: req.Calculation,
		Value:       req.Value,
		FeeOnMonth:  req.FeeOnMonth,
		FeeOnDay:    req.FeeOnDay,
		FeeInterval: req.FeeInterval,
		Penalty:     req.Penalty,
		Active:      true,
	}
	if c.Name == "" {
		return c, invalid(chargeCode+".name.required", "name", "charge name is required")
	}
	if !c.Value.IsPositive() {
		return c, invalid(chargeCode+".amount.not.positive", "value", "charge value %s must be greater than zero", c.Value)
	}
	switch c.Calculation {
	case model.ChargeFlat:
	case model.ChargePercentOfAmount:
		if c.TimeType != model.ChargeWithdrawalFee && c.TimeType != model.ChargePreClosureFee {
			return c, invalid(chargeCode+".percent.not.allowed", "calculation", "percentage charges apply only to withdrawals and pre-closure")
		}
		if c.Value.GreaterThan(decimal.NewFromInt(100)) {
			return c, invalid(chargeCode+".percent.out.of.range", "value", "percentage %s is greater than 100", c.Value)
		}
	default:
		return c, invalid(chargeCode+".calculation.invalid", "calculation", "unknown charge calculation %d", c.Calculation)
	}

	switch c.TimeType {
	case model.ChargeSpecifiedDueDate:
		if req.DueDate == "" {
			return c, invalid(chargeCode+".due.date.required", "due_date", "specified due date charges need a due date")
		}
		due, err := model.ParseDate(req.DueDate)
		if err != nil {
			return c, invalid(chargeCode+".due.date.invalid", "due_date", "%v", err)
		}
		c.DueDate = &due
	case model.ChargeAnnualFee:
		if c.FeeOnMonth < 1 || c.FeeOnMonth > 12 || c.FeeOnDay < 1 || c.FeeOnDay > 31 {
			return c, invalid(chargeCode+".fee.on.month.day.invalid", "fee_on_month", "annual fees need a valid month and day")
		}
	case model.ChargeMonthlyFee, model.ChargeWeeklyFee:
		if c.FeeInterval < 1 {
			c.FeeInterval = 1
		}
	case model.ChargeSavingsActivation, model.ChargeSavingsClosure, model.ChargeWithdrawalFee, model.ChargePreClosureFee:
	default:
		return c, invalid(chargeCode+".time.type.invalid", "time_type", "unknown charge time %d", c.TimeType)
	}

	if c.Calculation == model.ChargeFlat {
		c.Amount = c.Value
	}
	switch c.TimeType {
	case model.ChargeWithdrawalFee, model.ChargePreClosureFee:
	default:
		c.AmountOutstanding = c.Amount
	}
	return c, nil
}

// AddCharge attaches a charge to an account that is not closed yet.
func (r Rules) AddCharge(acc *model.Account, c model.Charge) (*model.Charge, error) {
	if acc.Status.IsClosed() || acc.Status == model.StatusMatured {
		return nil, invalid(chargeCode+".account.closed", "status", "charges cannot be added to a %s account", acc.Status)
	}
	if c.TimeType == model.ChargeSavingsActivation && acc.Status == model.StatusActive {
		return nil, invalid(chargeCode+".activation.fee.after.activation", "time_type", "account %d is already active", acc.ID)
	}
	if c.TimeType == model.ChargeSpecifiedDueDate && c.DueDate != nil {
		if err := notBefore(chargeCode+".due.date.before.submittal", "due_date", *c.DueDate, &acc.SubmittedOn); err != nil {
			return nil, err
		}
	}
	c.AccountID = acc.ID
	if acc.ActivatedOn != nil {
		initDueDate(&c, *acc.ActivatedOn)
	}
	acc.Charges = append(acc.Charges, c)
	return &acc.Charges[len(acc.Charges)-1], nil
}

// PayCharge pays amount towards an outstanding charge.
func (r Rules) PayCharge(acc *model.Account, chargeID int64, date time.Time, amount decimal.Decimal) (*model.Transaction, error) {
	if err := requireActive(acc, chargeCode); err != nil {
		return nil, err
	}
	c := findCharge(acc, chargeID)
	if c == nil || !c.Active {
		return nil, invalid(chargeCode+".not.found", "chargeId", "charge %d does not belong to account %d", chargeID, acc.ID)
	}
	if !amount.IsPositive() {
		return nil, invalid(chargeCode+".amount.not.positive", "amount", "amount %s must be greater than zero", amount)
	}
	if amount.GreaterThan(c.AmountOutstanding) {
		return nil, invalid(chargeCode+".transaction.amount.exceeds.outstanding", "amount",
			"amount %s is greater than the outstanding %s", amount, c.AmountOutstanding)
	}
	if err := r.notInFuture(chargeCode+".transaction", date); err != nil {
		return nil, err
	}
	if err := notBefore(chargeCode+".transaction.before.activation.date", "date", date, acc.ActivatedOn); err != nil {
		return nil, err
	}

	ref, err := r.payCharge(acc, c, date, amount)
	if err != nil {
		return nil, err
	}
	return byRef(acc, ref), nil
}

func (r Rules) payCharge(acc *model.Account, c *model.Charge, date time.Time, amount decimal.Decimal) (string, error) {
	typ := model.TransactionPayCharge
	if c.TimeType == model.ChargeAnnualFee {
		typ = model.TransactionAnnualFee
	}
	txn := appendTransaction(acc, typ, date, amount)
	txn.ChargeID = c.ID
	ref := txn.RefNo
	if err := validateBalance(acc); err != nil {
		acc.Transactions = acc.Transactions[:len(acc.Transactions)-1]
		return "", err
	}
	c.AmountPaid = c.AmountPaid.Add(amount)
	c.AmountOutstanding = c.AmountOutstanding.Sub(amount)
	if c.TimeType.IsRecurring() && c.IsSettled() {
		advanceDueDate(c)
	}
	recalculate(acc)
	return ref, nil
}

// PayDueCharges pays every fee that has fallen due by the business date, on
// its due date. Recurring fees are paid once for each period they are
// behind. It returns the number of payments made.
func (r Rules) PayDueCharges(acc *model.Account) (int, error) {
	if err := requireActive(acc, chargeCode); err != nil {
		return 0, err
	}
	paid := 0
	var earliest *time.Time
	for i := range acc.Charges {
		c := &acc.Charges[i]
		for r.isDue(c) {
			due := *c.DueDate
			if _, err := r.payCharge(acc, c, due, c.AmountOutstanding); err != nil {
				return paid, fmt.Errorf("charge %q due %s: %w", c.Name, due.Format(model.DateLayout), err)
			}
			paid++
			if earliest == nil || due.Before(*earliest) {
				earliest = datePtr(due)
			}
		}
	}
	if earliest != nil {
		if err := r.repostIfBackdated(acc, *earliest); err != nil {
			return paid, err
		}
	}
	return paid, nil
}

func (r Rules) isDue(c *model.Charge) bool {
	if !c.Active || c.DueDate == nil || c.DueDate.After(r.Today) || c.IsSettled() {
		return false
	}
	return c.TimeType.IsRecurring() || c.TimeType == model.ChargeSpecifiedDueDate
}

// WaiveCharge writes off what is outstanding on a charge.
func (r Rules) WaiveCharge(acc *model.Account, chargeID int64) (*model.Transaction, error) {
	if err := requireActive(acc, chargeCode); err != nil {
		return nil, err
	}
	c := findCharge(acc, chargeID)
	if c == nil || !c.Active {
		return nil, invalid(chargeCode+".not.found", "chargeId", "charge %d does not belong to account %d", chargeID, acc.ID)
	}
	if c.IsSettled() {
		return nil, invalid(chargeCode+".already.settled", "chargeId", "charge %d has nothing outstanding", chargeID)
	}

	date := r.Today
	if c.DueDate != nil && !c.DueDate.After(r.Today) {
		date = *c.DueDate
	}
	txn := appendTransaction(acc, model.TransactionWaiveCharges, date, c.AmountOutstanding)
	txn.ChargeID = c.ID
	ref := txn.RefNo
	c.AmountWaived = c.AmountWaived.Add(c.AmountOutstanding)
	c.AmountOutstanding = decimal.Zero
	if c.TimeType.IsRecurring() {
		advanceDueDate(c)
	}
	recalculate(acc)
	return byRef(acc, ref), nil
}

// chargeAmount is what a charge costs against base. Percentages are taken
// of base; flat charges ignore it.
func chargeAmount(acc *model.Account, c *model.Charge, base decimal.Decimal) decimal.Decimal {
	if c.Calculation == model.ChargePercentOfAmount {
		return round(acc, percentOf(base, c.Value))
	}
	return c.Value
}

// applyWithdrawalFees charges the withdrawal fees of acc on the withdrawal
// with reference ref.
func applyWithdrawalFees(acc *model.Account, ref string, date time.Time, amount decimal.Decimal) {
	for i := range acc.Charges {
		c := &acc.Charges[i]
		if !c.Active || c.TimeType != model.ChargeWithdrawalFee {
			continue
		}
		fee := chargeAmount(acc, c, amount)
		if !fee.IsPositive() {
			continue
		}
		txn := appendTransaction(acc, model.TransactionWithdrawalFee, date, fee)
		txn.ChargeID = c.ID
		txn.LinkedRefNo = ref
		c.Amount = fee
		c.AmountPaid = c.AmountPaid.Add(fee)
	}
}

// payActivationCharges settles every activation charge on the activation
// date.
func (r Rules) payActivationCharges(acc *model.Account, date time.Time) error {
	for i := range acc.Charges {
		c := &acc.Charges[i]
		if !c.Active || c.TimeType != model.ChargeSavingsActivation || c.IsSettled() {
			continue
		}
		if _, err := r.payCharge(acc, c, date, c.AmountOutstanding); err != nil {
			return fmt.Errorf("activation charge %q: %w", c.Name, err)
		}
	}
	return nil
}

// payChargesOfType settles the outstanding charges of one time type,
// computing percentage charges against base.
func (r Rules) payChargesOfType(acc *model.Account, typ model.ChargeTime, date time.Time, base decimal.Decimal) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range acc.Charges {
		c := &acc.Charges[i]
		if !c.Active || c.TimeType != typ {
			continue
		}
		amount := c.AmountOutstanding
		if typ == model.ChargePreClosureFee {
			amount = chargeAmount(acc, c, base)
			c.Amount = amount
			c.AmountOutstanding = amount
		}
		if !amount.IsPositive() {
			continue
		}
		if _, err := r.payCharge(acc, c, date, amount); err != nil {
			return total, fmt.Errorf("charge %q: %w", c.Name, err)
		}
		total = total.Add(amount)
	}
	return total, nil
}

func findCharge(acc *model.Account, id int64) *model.Charge {
	if id == 0 {
		return nil
	}
	for i := range acc.Charges {
		if acc.Charges[i].ID == id {
			return &acc.Charges[i]
		}
	}
	return nil
}

// initDueDate sets the first due date of a recurring charge from the
// activation date.
func initDueDate(c *model.Charge, activatedOn time.Time) {
	if c.DueDate != nil {
		return
	}
	switch c.TimeType {
	case model.ChargeAnnualFee:
		due := dayInMonth(activatedOn.Year(), time.Month(c.FeeOnMonth), c.FeeOnDay)
		if due.Before(activatedOn) {
			due = dayInMonth(activatedOn.Year()+1, time.Month(c.FeeOnMonth), c.FeeOnDay)
		}
		c.DueDate = &due
	case model.ChargeMonthlyFee:
		due := interest.AddPeriod(activatedOn, c.FeeInterval, model.FrequencyMonths)
		if c.FeeOnDay > 0 {
			due = dayInMonth(due.Year(), due.Month(), c.FeeOnDay)
		}
		c.DueDate = &due
	case model.ChargeWeeklyFee:
		due := interest.AddPeriod(activatedOn, c.FeeInterval, model.FrequencyWeeks)
		c.DueDate = &due
	}
}

func advanceDueDate(c *model.Charge) {
	if c.DueDate == nil {
		return
	}
	var next time.Time
	switch c.TimeType {
	case model.ChargeAnnualFee:
		next = dayInMonth(c.DueDate.Year()+1, time.Month(c.FeeOnMonth), c.FeeOnDay)
	case model.ChargeMonthlyFee:
		next = interest.AddPeriod(*c.DueDate, c.FeeInterval, model.FrequencyMonths)
		if c.FeeOnDay > 0 {
			next = dayInMonth(next.Year(), next.Month(), c.FeeOnDay)
		}
	case model.ChargeWeeklyFee:
		next = interest.AddPeriod(*c.DueDate, c.FeeInterval, model.FrequencyWeeks)
	default:
		return
	}
	c.DueDate = &next
	c.AmountOutstanding = c.Amount
}

// dayInMonth clamps day to the length of the month.
func dayInMonth(year int, month time.Month, day int) time.Time {
	last := interest.EndOfMonth(model.Date(year, month, 1)).Day()
	if day > last {
		day = last
	}
	return model.Date(year, month, day)
}
