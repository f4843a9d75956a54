package source

import "strings"

// Allow-sets are compiled in. They are never extended from configuration or request input.
var (
	allowedTables = map[string]struct{}{
		"TRX_Online_Card":    {},
		"TRX_Online_Bank":    {},
		"TRX_Online_Bank_PM": {},
		"TRX_Online_BHD":     {},
		"TRX_Online_PayPal":  {},
		"TRX_Online_PIX":     {},
		"TRX_Online_Stripe":  {},
		"TRX_Release_Now":    {},
		"Payment_Log":        {},
	}

	allowedColumns = map[string]struct{}{
		"date_trx":               {},
		"registration_date":      {},
		"origin_bank":            {},
		"origin_payment_country": {},
		"country":                {},
		"id":                     {},
		"date":                   {},
		"payment_method":         {},
		"country_id":             {},
		"collection_id_real":     {},
	}
)

// Validated is a descriptor whose identifiers passed the allow-list check.
// It can only be obtained from Validate; query builders accept nothing else.
type Validated struct {
	d Descriptor
}

// Descriptor returns a copy of the underlying descriptor.
func (v Validated) Descriptor() Descriptor {
	d := v.d
	d.GroupColumns = append([]string(nil), v.d.GroupColumns...)
	return d
}

func (v Validated) Name() string              { return v.d.Name }
func (v Validated) Kind() Kind                { return v.d.Kind }
func (v Validated) DateColumn() string        { return v.d.DateColumn }
func (v Validated) IDColumn() string          { return v.d.IDColumn }
func (v Validated) CorrelationColumn() string { return v.d.CorrelationColumn }

// GroupColumns returns the grouping columns in declaration order.
func (v Validated) GroupColumns() []string {
	return append([]string(nil), v.d.GroupColumns...)
}

// Validate checks every identifier of d against the allow-sets. It fails closed:
// an unknown kind, a missing required column or any unknown name is rejected.
func Validate(d Descriptor) (Validated, error) {
	if !allowedTable(d.Name) {
		return Validated{}, rejected(d, "table", d.Name)
	}
	if len(d.GroupColumns) == 0 {
		return Validated{}, rejected(d, "", "no group column")
	}
	for _, col := range d.GroupColumns {
		if !allowedColumn(col) {
			return Validated{}, rejected(d, "group column", col)
		}
	}

	switch d.Kind {
	case TimeWindowed:
		if !allowedColumn(d.DateColumn) {
			return Validated{}, rejected(d, "date column", d.DateColumn)
		}
	case IDWindowed:
		if !allowedColumn(d.IDColumn) {
			return Validated{}, rejected(d, "id column", d.IDColumn)
		}
	case Classified:
		if !allowedColumn(d.DateColumn) {
			return Validated{}, rejected(d, "date column", d.DateColumn)
		}
		if !allowedColumn(d.CorrelationColumn) {
			return Validated{}, rejected(d, "correlation column", d.CorrelationColumn)
		}
	default:
		return Validated{}, rejected(d, "kind", string(d.Kind))
	}

	return Validated{d: d.cloned()}, nil
}

// ValidateNames checks a table name and any number of column names against the allow-sets.
func ValidateNames(table string, columns ...string) error {
	d := Descriptor{Name: table}
	if !allowedTable(table) {
		return rejected(d, "table", table)
	}
	for _, col := range columns {
		if !allowedColumn(col) {
			return rejected(d, "column", col)
		}
	}
	return nil
}

// QuoteIdentifier wraps an identifier in double quotes, doubling embedded quotes.
// Callers must only pass identifiers taken from a Validated descriptor.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func allowedTable(name string) bool {
	_, ok := allowedTables[name]
	return ok
}

func allowedColumn(name string) bool {
	_, ok := allowedColumns[name]
	return ok
}

func (d Descriptor) cloned() Descriptor {
	c := d
	c.GroupColumns = append([]string(nil), d.GroupColumns...)
	return c
}
