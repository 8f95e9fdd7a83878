package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type ledgerPayload struct {
	Day         int    `json:"day"`
	Job         string `json:"job"`
	JobDone     bool   `json:"jobDone"`
	HoursWorked int    `json:"hoursWorked"`
	LiquidMoney struct {
		Total           int64            `json:"total"`
		CheckingAccount map[string]int64 `json:"checkingAccount"`
		SavingsAccount  map[string]int64 `json:"savingsAccount"`
	} `json:"liquidMoney"`
	Credit struct {
		CreditLimit    int64            `json:"creditLimit"`
		CreditCards    map[string]int64 `json:"creditCards"`
		CreditCardBill int64            `json:"creditCardBill"`
		CreditScore    *int             `json:"creditScore"`
	} `json:"credit"`
	Loans map[string]struct {
		Amount         int64   `json:"amount"`
		InterestRate   float64 `json:"interestRate"`
		TermMonths     int     `json:"termMonths"`
		MonthlyPayment int64   `json:"monthlyPayment"`
		Remaining      int64   `json:"remaining"`
	} `json:"loans"`
	Food         int    `json:"food"`
	FoodZeroDays int    `json:"foodZeroDays"`
	Housing      string `json:"housing"`
	Car          bool   `json:"car"`
}

type duesPayload struct {
	Day   int `json:"day"`
	Items []struct {
		Label  string `json:"label"`
		Days   int    `json:"days"`
		Amount int64  `json:"amount"`
		LoanID string `json:"loanId"`
	} `json:"items"`
}

type advancePayload struct {
	Outcome     string `json:"outcome"`
	Day         int    `json:"day"`
	Payout      int64  `json:"payout"`
	Score       *int   `json:"score"`
	PendingDues []struct {
		Label  string `json:"label"`
		Amount int64  `json:"amount"`
		LoanID string `json:"loanId"`
	} `json:"pendingDues"`
}

type timersPayload struct {
	Timers []timerStatePayload `json:"timers"`
}

type timerStatePayload struct {
	Job       string `json:"job"`
	ElapsedMs int64  `json:"elapsedMs"`
	Minutes   int    `json:"minutes"`
	Running   bool   `json:"running"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

// promptDollars reads a dollar amount and returns whole cents.
func promptDollars(label string) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		text = strings.TrimPrefix(text, "$")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || v <= 0 {
			printWarn("Enter a positive dollar amount.")
			continue
		}
		return int64(v*100 + 0.5), nil
	}
}

func renderLedger(raw map[string]any) error {
	l, err := decodeInto[ledgerPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("Day %d", l.Day)
	if l.Job != "" {
		fmt.Printf("  ·  %s", l.Job)
		if l.JobDone {
			success.Print(" (worked)")
		}
	}
	fmt.Println()

	neutral.Printf("Cash total: %s\n", formatCents(l.LiquidMoney.Total))
	for _, k := range sortedKeys(l.LiquidMoney.CheckingAccount) {
		fmt.Printf("  checking/%-12s %s\n", k, formatCents(l.LiquidMoney.CheckingAccount[k]))
	}
	for _, k := range sortedKeys(l.LiquidMoney.SavingsAccount) {
		fmt.Printf("  savings/%-13s %s\n", k, formatCents(l.LiquidMoney.SavingsAccount[k]))
	}

	fmt.Printf("Food: %d", l.Food)
	if l.FoodZeroDays > 0 {
		danger.Printf("  (starving for %d days)", l.FoodZeroDays)
	}
	fmt.Println()
	fmt.Printf("Housing: %s  Car: %v  Pending minutes: %d\n", l.Housing, l.Car, l.HoursWorked)

	if l.Credit.CreditScore != nil {
		fmt.Printf("Credit score: %d\n", *l.Credit.CreditScore)
	}
	if l.Credit.CreditLimit > 0 || l.Credit.CreditCardBill > 0 {
		fmt.Printf("Card bill: %s of %s limit\n", formatCents(l.Credit.CreditCardBill), formatCents(l.Credit.CreditLimit))
	}
	for _, id := range sortedLoanKeys(l) {
		loan := l.Loans[id]
		fmt.Printf("Loan %s: %s remaining, %s/month at %.0f%%\n",
			id, formatCents(loan.Remaining), formatCents(loan.MonthlyPayment), loan.InterestRate*100)
	}
	return nil
}

func renderDues(raw map[string]any) error {
	d, err := decodeInto[duesPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("Dues as of day %d\n", d.Day)
	for _, item := range d.Items {
		label := item.Label
		if item.LoanID != "" {
			label = fmt.Sprintf("%s (%s)", item.Label, item.LoanID)
		}
		if item.Days == 0 {
			danger.Printf("  %-28s due today  %s\n", label, formatCents(item.Amount))
		} else {
			fmt.Printf("  %-28s in %d days  %s\n", label, item.Days, formatCents(item.Amount))
		}
	}
	return nil
}

func renderAdvance(raw map[string]any) error {
	a, err := decodeInto[advancePayload](raw)
	if err != nil {
		return err
	}
	switch a.Outcome {
	case "dead":
		danger.Println("You starved. The account is gone.")
	case "blocked":
		warn.Println("Day cannot advance until these are paid:")
		for _, item := range a.PendingDues {
			label := item.Label
			if item.LoanID != "" {
				label = fmt.Sprintf("%s (%s)", item.Label, item.LoanID)
			}
			fmt.Printf("  %-28s %s\n", label, formatCents(item.Amount))
		}
		printInfo("Settle each with `pbk pay`, then run `pbk advance` again.")
	default:
		success.Printf("Advanced to day %d.\n", a.Day)
		if a.Payout > 0 {
			success.Printf("Payout: %s\n", formatCents(a.Payout))
		}
		if a.Score != nil {
			fmt.Printf("Credit score refreshed: %d\n", *a.Score)
		}
	}
	return nil
}

func renderLoanDecision(raw map[string]any) error {
	approved, _ := raw["approved"].(bool)
	chance, _ := raw["chance"].(float64)
	if !approved {
		warn.Printf("Loan denied (approval chance was %.0f%%).\n", chance*100)
		return nil
	}
	payment, _ := asInt64(raw["monthlyPayment"])
	remaining, _ := asInt64(raw["remaining"])
	rate, _ := raw["rate"].(float64)
	success.Printf("Loan approved: %s/month at %.0f%%, %s total owed.\n",
		formatCents(payment), rate*100, formatCents(remaining))
	return nil
}

func renderCardDecision(raw map[string]any) error {
	approved, _ := raw["approved"].(bool)
	if !approved {
		warn.Println("Card application declined.")
		return nil
	}
	limit, _ := asInt64(raw["limit"])
	cardID, _ := raw["cardId"].(string)
	success.Printf("Card %s approved with a %s limit.\n", cardID, formatCents(limit))
	return nil
}

func renderJobDecision(raw map[string]any) error {
	hired, _ := raw["hired"].(bool)
	job, _ := raw["job"].(string)
	chance, _ := raw["chance"].(float64)
	if hired {
		success.Printf("Hired as %s.\n", job)
	} else {
		warn.Printf("Not hired (chance was %.0f%%). Try again.\n", chance*100)
	}
	return nil
}

func renderTimers(raw map[string]any) error {
	t, err := decodeInto[timersPayload](raw)
	if err != nil {
		return err
	}
	for _, state := range t.Timers {
		printTimer(state)
	}
	return nil
}

func renderTimerState(raw map[string]any) error {
	state, err := decodeInto[timerStatePayload](raw)
	if err != nil {
		return err
	}
	printTimer(state)
	return nil
}

func printTimer(state timerStatePayload) {
	status := "paused"
	if state.Running {
		status = "running"
	}
	fmt.Printf("%-10s %2dm %02ds  (%s)\n",
		state.Job, state.ElapsedMs/60000, (state.ElapsedMs/1000)%60, status)
}

func canonicalLabel(choice string) string {
	switch choice {
	case "rent":
		return "Rent"
	case "credit card":
		return "Credit card"
	case "utilities":
		return "Utilities"
	case "taxes":
		return "Taxes"
	case "loan installment":
		return "Loan installment"
	default:
		return choice
	}
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func formatCents(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%02d", sign, v/100, v%100)
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedLoanKeys(l ledgerPayload) []string {
	keys := make([]string, 0, len(l.Loans))
	for k := range l.Loans {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
