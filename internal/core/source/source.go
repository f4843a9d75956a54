package source

// Kind selects how "new rows" are defined for a source.
type Kind string

const (
	// TimeWindowed sources select rows whose date column falls in [from, to).
	TimeWindowed Kind = "time"
	// IDWindowed sources select rows whose id column exceeds the last seen maximum.
	IDWindowed Kind = "id"
	// Classified sources are time-windowed and split rows into processed / not processed
	// by the presence of a correlation value.
	Classified Kind = "classified"
)

// Descriptor describes one queryable source. Descriptors are defined once at process
// start and never mutated.
type Descriptor struct {
	Name              string   `json:"name"`
	Kind              Kind     `json:"kind"`
	DateColumn        string   `json:"date_column,omitempty"`
	GroupColumns      []string `json:"group_columns,omitempty"`
	IDColumn          string   `json:"id_column,omitempty"`
	CorrelationColumn string   `json:"correlation_column,omitempty"`
}

// TimeSource builds a time-windowed descriptor grouped by one column.
func TimeSource(name, dateColumn, groupColumn string) Descriptor {
	return Descriptor{Name: name, Kind: TimeWindowed, DateColumn: dateColumn, GroupColumns: []string{groupColumn}}
}

// IDSource builds an id-windowed descriptor grouped by one column.
func IDSource(name, idColumn, groupColumn string) Descriptor {
	return Descriptor{Name: name, Kind: IDWindowed, IDColumn: idColumn, GroupColumns: []string{groupColumn}}
}

// Key returns the watermark key for the descriptor.
func (d Descriptor) Key() string {
	return d.Name
}

func (d Descriptor) String() string {
	return d.Name + "(" + string(d.Kind) + ")"
}

// TransactionSources returns the sources reported by the transaction monitor,
// in report order.
func TransactionSources() []Descriptor {
	return []Descriptor{
		TimeSource("TRX_Online_Card", "date_trx", "origin_payment_country"),
		TimeSource("TRX_Online_Bank", "date_trx", "origin_bank"),
		TimeSource("TRX_Online_Bank_PM", "date_trx", "origin_bank"),
		TimeSource("TRX_Online_BHD", "date_trx", "country"),
		TimeSource("TRX_Online_PayPal", "date_trx", "origin_payment_country"),
		TimeSource("TRX_Online_PIX", "date_trx", "country"),
		TimeSource("TRX_Online_Stripe", "date_trx", "country"),
		IDSource("TRX_Release_Now", "id", "country"),
	}
}

// PaymentLogSource returns the descriptor used by the payment log monitor.
func PaymentLogSource() Descriptor {
	return Descriptor{
		Name:              "Payment_Log",
		Kind:              Classified,
		DateColumn:        "date",
		GroupColumns:      []string{"payment_method", "country_id"},
		CorrelationColumn: "collection_id_real",
	}
}
