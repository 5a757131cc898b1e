package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountUnmarshal(t *testing.T) {
	testCases := []struct {
		input     string
		wantValue float64
		wantValid bool
		wantRaw   string
	}{
		{input: `862.12`, wantValue: 862.12, wantValid: true, wantRaw: "862.12"},
		{input: `"862.12"`, wantValue: 862.12, wantValid: true, wantRaw: "862.12"},
		{input: `50`, wantValue: 50, wantValid: true, wantRaw: "50"},
		{input: `" 12.5 "`, wantValue: 12.5, wantValid: true, wantRaw: "12.5"},
		{input: `""`},
		{input: `null`},
		{input: `"n/a"`, wantRaw: "n/a"},
		{input: `"-"`, wantRaw: "-"},
	}

	for _, tc := range testCases {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(tc.input), &a), tc.input)

		value, ok := a.Value()
		assert.Equal(t, tc.wantValid, ok, tc.input)
		assert.Equal(t, tc.wantValue, value, tc.input)
		assert.Equal(t, tc.wantRaw, a.Raw(), tc.input)
	}
}

func TestAmountMarshal(t *testing.T) {
	testCases := []struct {
		amount   Amount
		expected string
	}{
		{amount: NewAmount(862.12), expected: `862.12`},
		{amount: NewAmount(50), expected: `50`},
		{amount: Amount{raw: "-"}, expected: `"-"`},
		{amount: Amount{}, expected: `null`},
	}

	for _, tc := range testCases {
		data, err := json.Marshal(tc.amount)
		require.NoError(t, err)
		assert.Equal(t, tc.expected, string(data))

		var decoded Amount
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, tc.amount.Equal(decoded), tc.expected)
	}
}

func TestPaymentRecordDecode(t *testing.T) {
	body := `{"amount":"862.12","date":"30.01.2026","receipt":"R-1","details":[{"name":"Fond rulment","amount":50},{"name":"Întreținere","amount":812.12}]}`

	var rec PaymentRecord
	require.NoError(t, json.Unmarshal([]byte(body), &rec))

	assert.Equal(t, 862.12, rec.Amount.Float64())
	assert.Equal(t, map[string]float64{"Fond rulment": 50, "Întreținere": 812.12}, rec.Breakdown())

	date, err := rec.ParsedDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 30, 0, 0, 0, 0, time.UTC), date)
}

func TestPaymentRecordReceipt(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: `{"receipt":"R-1"}`, expected: "R-1"},
		{input: `{"receipt":1001}`, expected: "1001"},
		{input: `{"receipt":null}`, expected: ""},
		{input: `{}`, expected: ""},
	}

	for _, tc := range testCases {
		var rec PaymentRecord
		require.NoError(t, json.Unmarshal([]byte(tc.input), &rec), tc.input)
		assert.Equal(t, tc.expected, rec.Receipt, tc.input)
	}
}

func TestPaymentHistoryDecodeIrregularValues(t *testing.T) {
	body := `{"results":[
		{"amount":"862.12","date":"30.01.2026","receipt":1002,"details":[{"name":"Întreținere","amount":862.12}]},
		{"amount":"700","date":"28.12.2025","receipt":"998","details":[{"name":"Fond rulment","amount":"-"},{"name":"Întreținere","amount":"700"}]}
	]}`

	var h PaymentHistory
	require.NoError(t, json.Unmarshal([]byte(body), &h))
	require.Len(t, h.Results, 2)

	assert.Equal(t, "1002", h.Results[0].Receipt)
	assert.Equal(t, 862.12, h.Results[0].Amount.Float64())

	dash := h.Results[1].Details[0].Amount
	_, ok := dash.Value()
	assert.False(t, ok)
	assert.Equal(t, "-", dash.Raw())
	assert.Equal(t, map[string]float64{"Fond rulment": 0, "Întreținere": 700}, h.Results[1].Breakdown())

	// The raw text survives re-encoding.
	data, err := json.Marshal(h.Results[1].Details[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Fond rulment","amount":"-"}`, string(data))
}

func TestPaymentHistoryLatest(t *testing.T) {
	var h *PaymentHistory
	_, ok := h.Latest()
	assert.False(t, ok)

	h = &PaymentHistory{Results: []PaymentRecord{{Date: "30.01.2026"}, {Date: "28.12.2025"}}}
	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, "30.01.2026", latest.Date)
}
