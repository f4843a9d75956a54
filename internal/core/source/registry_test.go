package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_BuiltInSources(t *testing.T) {
	for _, d := range append(TransactionSources(), PaymentLogSource()) {
		t.Run(d.Name, func(t *testing.T) {
			v, err := Validate(d)
			require.NoError(t, err)
			assert.Equal(t, d.Name, v.Name())
			assert.Equal(t, d.Kind, v.Kind())
			assert.Equal(t, d.GroupColumns, v.GroupColumns())
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		desc  Descriptor
		field string
		value string
	}{
		{
			name:  "unknown table",
			desc:  TimeSource("users; DROP TABLE users", "date_trx", "country"),
			field: "table",
			value: "users; DROP TABLE users",
		},
		{
			name:  "unknown date column",
			desc:  TimeSource("TRX_Online_Card", "created_at", "country"),
			field: "date column",
			value: "created_at",
		},
		{
			name:  "injected group column",
			desc:  TimeSource("TRX_Online_Card", "date_trx", `country" --`),
			field: "group column",
			value: `country" --`,
		},
		{
			name:  "unknown id column",
			desc:  IDSource("TRX_Release_Now", "rowid", "country"),
			field: "id column",
			value: "rowid",
		},
		{
			name: "missing correlation column",
			desc: Descriptor{
				Name:         "Payment_Log",
				Kind:         Classified,
				DateColumn:   "date",
				GroupColumns: []string{"payment_method"},
			},
			field: "correlation column",
			value: "",
		},
		{
			name:  "unknown kind",
			desc:  Descriptor{Name: "TRX_Online_Card", Kind: "full", GroupColumns: []string{"country"}},
			field: "kind",
			value: "full",
		},
		{
			name:  "no group column",
			desc:  Descriptor{Name: "TRX_Online_Card", Kind: TimeWindowed, DateColumn: "date_trx"},
			field: "",
			value: "no group column",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.desc)
			require.Error(t, err)

			var rej *RejectedIdentifierError
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tc.desc.Name, rej.Source)
			assert.Equal(t, tc.field, rej.Field)
			assert.Equal(t, tc.value, rej.Value)
		})
	}
}

func TestValidate_IsCaseSensitive(t *testing.T) {
	_, err := Validate(TimeSource("trx_online_card", "date_trx", "country"))
	require.Error(t, err)
}

func TestValidated_DoesNotAliasDescriptor(t *testing.T) {
	d := TimeSource("TRX_Online_Card", "date_trx", "country")
	v, err := Validate(d)
	require.NoError(t, err)

	d.GroupColumns[0] = "evil"
	cols := v.GroupColumns()
	cols[0] = "evil"

	assert.Equal(t, []string{"country"}, v.GroupColumns())
	assert.Equal(t, []string{"country"}, v.Descriptor().GroupColumns)
}

func TestValidateNames(t *testing.T) {
	require.NoError(t, ValidateNames("TRX_Online_PIX", "date_trx", "country"))
	require.Error(t, ValidateNames("TRX_Online_PIX", "date_trx", "password"))
	require.Error(t, ValidateNames("accounts"))
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"TRX_Online_Card"`, QuoteIdentifier("TRX_Online_Card"))
	assert.Equal(t, `"a""b"`, QuoteIdentifier(`a"b`))
}
