package domain

// Driver represents a driver in the system.
type Driver struct {
	ID          string
	Name        string
	Phone       string
	AdminID     string // brand scope; empty for the direct fleet
	VehicleType VehicleType
	Payout      PayoutDetails
}

// PayoutDetails is where a driver's withdrawals are sent.
type PayoutDetails struct {
	Methode           MethodeRetrait
	NumeroCompte      string
	BankName          string
	BankAccountName   string
	BankAccountNumber string
}

// Complete reports whether the details identify a destination account.
func (p PayoutDetails) Complete() bool {
	switch p.Methode {
	case MethodeMonCash, MethodeNatCash:
		return p.NumeroCompte != ""
	case MethodeBank:
		return p.BankName != "" && p.BankAccountName != "" && p.BankAccountNumber != ""
	}
	return false
}

// Merge fills empty fields of p from fallback when both use the same method.
func (p PayoutDetails) Merge(fallback PayoutDetails) PayoutDetails {
	if p.Methode == "" {
		return fallback
	}
	if p.Methode != fallback.Methode {
		return p
	}
	if p.NumeroCompte == "" {
		p.NumeroCompte = fallback.NumeroCompte
	}
	if p.BankName == "" {
		p.BankName = fallback.BankName
	}
	if p.BankAccountName == "" {
		p.BankAccountName = fallback.BankAccountName
	}
	if p.BankAccountNumber == "" {
		p.BankAccountNumber = fallback.BankAccountNumber
	}
	return p
}
