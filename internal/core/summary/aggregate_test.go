package summary

import (
	"errors"
	"testing"
	"time"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	from = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	to   = from.Add(30 * time.Minute)
)

func TestAggregate(t *testing.T) {
	card := source.TimeSource("TRX_Online_Card", "date_trx", "origin_payment_country")
	bank := source.TimeSource("TRX_Online_Bank", "date_trx", "origin_bank")
	pix := source.TimeSource("TRX_Online_PIX", "date_trx", "country")
	release := source.IDSource("TRX_Release_Now", "id", "country")

	got := Aggregate(from, to, []SourceResult{
		{Source: card, Status: StatusOK, Groups: []GroupCount{{"EU", 2}, {"US", 3}}},
		{Source: bank, Status: StatusOK},
		{Source: pix, Status: StatusFailed, Err: errors.New("connection reset")},
		{Source: release, Status: StatusSeeded},
	})

	require.Len(t, got.Sources, 4)
	assert.Equal(t, from, got.FromTime)
	assert.Equal(t, to, got.ToTime)

	assert.Equal(t, "TRX_Online_Card", got.Sources[0].SourceName)
	assert.Equal(t, []GroupCount{{"US", 3}, {"EU", 2}}, got.Sources[0].Groups)
	assert.Equal(t, int64(5), got.Sources[0].TotalCount())

	assert.Equal(t, []GroupCount{{"Total TRX_Online_Bank", 0}}, got.Sources[1].Groups)
	assert.Equal(t, StatusOK, got.Sources[1].Status)

	assert.Empty(t, got.Sources[2].Groups)
	assert.NotNil(t, got.Sources[2].Groups)
	assert.Equal(t, StatusFailed, got.Sources[2].Status)
	assert.Equal(t, "connection reset", got.Sources[2].Error)

	assert.Empty(t, got.Sources[3].Groups)
	assert.Equal(t, StatusSeeded, got.Sources[3].Status)

	assert.True(t, got.HasData())
	assert.Equal(t, int64(5), got.TotalCount())
}

func TestAggregate_FailedSourceIgnoresPartialGroups(t *testing.T) {
	card := source.TimeSource("TRX_Online_Card", "date_trx", "origin_payment_country")
	got := Aggregate(from, to, []SourceResult{
		{Source: card, Status: StatusFailed, Groups: []GroupCount{{"US", 9}}, Err: errors.New("scan")},
	})
	assert.Empty(t, got.Sources[0].Groups)
	assert.False(t, got.HasData())
}

func TestAggregate_NoResults(t *testing.T) {
	got := Aggregate(from, from, nil)
	assert.NotNil(t, got.Sources)
	assert.False(t, got.HasData())
	assert.Zero(t, got.TotalCount())
}

func TestClassify(t *testing.T) {
	got := Classify(from, to, []ClassifiedCount{
		{Key: "card / VE", Processed: true, Count: 4},
		{Key: "pix / BR", Processed: false, Count: 1},
		{Key: "bank / CO", Processed: true, Count: 9},
		{Key: "card / VE", Processed: false, Count: 6},
	})

	assert.Equal(t, StatusOK, got.Status)
	assert.Equal(t, []GroupCount{{"bank / CO", 9}, {"card / VE", 4}}, got.Processed)
	assert.Equal(t, []GroupCount{{"card / VE", 6}, {"pix / BR", 1}}, got.NotProcessed)
	assert.Equal(t, int64(13), got.ProcessedCount())
	assert.Equal(t, int64(7), got.NotProcessedCount())
	assert.True(t, got.HasData())
}

func TestEmptyClassified(t *testing.T) {
	got := EmptyClassified(from, to, StatusFailed, errors.New("timeout"))
	assert.Empty(t, got.Processed)
	assert.Empty(t, got.NotProcessed)
	assert.NotNil(t, got.Processed)
	assert.Equal(t, "timeout", got.Error)
	assert.False(t, got.HasData())
}

func TestSortByCount_StableAndCopying(t *testing.T) {
	in := []GroupCount{{"a", 1}, {"b", 2}, {"c", 1}, {"d", 2}}
	out := SortByCount(in)

	assert.Equal(t, []GroupCount{{"b", 2}, {"d", 2}, {"a", 1}, {"c", 1}}, out)
	assert.Equal(t, "a", in[0].Key)
}
