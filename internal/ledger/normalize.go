package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode parses a stored ledger document into a normalized Ledger. Documents
// written by older clients carry loose shapes: numbers as strings, flat
// checkingAccount scalars, creditCardbill casing, booleans as flags. All of
// that is coerced here, once, so the rest of the code only ever sees the
// strict struct.
func Decode(raw []byte) (*Ledger, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return FromDocument(doc), nil
}

// Encode serializes a ledger for storage.
func Encode(l *Ledger) ([]byte, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return raw, nil
}

// FromDocument normalizes a loosely-typed document map into a Ledger.
func FromDocument(doc map[string]any) *Ledger {
	l := New()
	l.Day = asInt(doc["day"])
	if l.Day < 1 {
		l.Day = 1
	}
	l.Job = ParseJob(asString(doc["job"]))
	l.JobDone = asBool(doc["jobDone"])
	l.HoursWorked = asInt(doc["hoursWorked"])
	l.Food = max(0, asInt(doc["food"]))
	l.FoodZeroDays = max(0, asInt(doc["foodZeroDays"]))
	l.Housing = asString(doc["housing"])
	if l.Housing == "" {
		l.Housing = "rent"
	}
	l.Car = asBool(doc["car"]) || asBool(doc["hasCar"]) || asBool(doc["ownsCar"])
	l.SeenLearnHint = asBool(doc["seenLearnHint"])
	l.RentCents = asCents(doc["rentRate"])
	l.UtilitiesCents = asCents(doc["utilitiesRate"])
	l.TaxesCents = asCents(doc["taxesRate"])

	l.LiquidMoney = normalizeLiquid(doc)
	l.Credit = normalizeCredit(doc["credit"])
	l.Loans = normalizeLoans(doc["loans"])
	return l
}

func normalizeLiquid(doc map[string]any) LiquidMoney {
	out := LiquidMoney{
		CheckingAccount: map[string]Cents{},
		SavingsAccount:  map[string]Cents{},
	}
	liquid, ok := doc["liquidMoney"].(map[string]any)
	if !ok {
		// Earliest documents stored a single flat checkingAccount number.
		if v := asCents(doc["checkingAccount"]); v != 0 {
			out.Total = v
			out.CheckingAccount["main"] = v
		}
		return out
	}
	out.Total = asCents(liquid["total"])
	out.CheckingAccount = asCentsMap(liquid["checkingAccount"])
	out.SavingsAccount = asCentsMap(liquid["savingsAccount"])
	if _, present := liquid["total"]; !present {
		for _, v := range out.CheckingAccount {
			out.Total += v
		}
		for _, v := range out.SavingsAccount {
			out.Total += v
		}
	}
	return out
}

func normalizeCredit(v any) CreditProfile {
	out := CreditProfile{
		CreditCards:    map[string]Cents{},
		PaymentHistory: []PaymentRecord{},
	}
	credit, ok := v.(map[string]any)
	if !ok {
		return out
	}
	out.CreditLimit = asCents(credit["creditLimit"])
	out.CreditCards = asCentsMap(credit["creditCards"])
	// Both casings appear in old documents.
	if bill, present := credit["creditCardBill"]; present {
		out.CreditCardBill = asCents(bill)
	} else {
		out.CreditCardBill = asCents(credit["creditCardbill"])
	}
	if score, present := credit["creditScore"]; present && score != nil {
		s := asInt(score)
		out.CreditScore = &s
	}
	if closing, present := credit["lastClosingBalance"]; present && closing != nil {
		c := asCents(closing)
		out.LastClosingBalance = &c
	}
	if hist, ok := credit["paymentHistory"].([]any); ok {
		for _, h := range hist {
			entry, ok := h.(map[string]any)
			if !ok {
				continue
			}
			rec := PaymentRecord{
				Type:   asString(entry["type"]),
				Amount: asCents(entry["amount"]),
				Day:    asInt(entry["day"]),
			}
			if onTime, present := entry["onTime"]; present && onTime != nil {
				b := asBool(onTime)
				rec.OnTime = &b
			}
			out.PaymentHistory = append(out.PaymentHistory, rec)
		}
	}
	return out
}

func normalizeLoans(v any) map[string]Loan {
	out := map[string]Loan{}
	loans, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for id, raw := range loans {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		loan := Loan{
			Amount:         asCents(entry["amount"]),
			InterestRate:   asFloat(entry["interestRate"]),
			TermMonths:     asInt(entry["termMonths"]),
			MonthlyPayment: asCents(entry["monthlyPayment"]),
			Remaining:      asCents(entry["remaining"]),
		}
		if loan.Remaining <= 0 && loan.MonthlyPayment > 0 && loan.TermMonths > 0 {
			loan.Remaining = loan.MonthlyPayment * Cents(loan.TermMonths)
		}
		out[id] = loan
	}
	return out
}

// ParseJob maps loose job spellings onto the canonical enum.
func ParseJob(s string) Job {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "parttime", "part-time":
		return JobPartTime
	case "company":
		return JobCompany
	case "freelance":
		return JobFreelance
	default:
		return JobNone
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(v any) int {
	return int(math.Round(asFloat(v)))
}

// asCents coerces a stored value to Cents. Numeric values in documents are
// whole cents already; string values may be legacy dollar amounts.
func asCents(v any) Cents {
	return Cents(math.Round(asFloat(v)))
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "yes"
	case float64:
		return t != 0
	default:
		return false
	}
}

func asCentsMap(v any) map[string]Cents {
	out := map[string]Cents{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, raw := range m {
		out[k] = asCents(raw)
	}
	return out
}
