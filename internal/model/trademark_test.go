package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrademark_JSONOmitsEmptyOptionals(t *testing.T) {
	t.Parallel()

	tm := Trademark{Name: "ACME", Classes: []int{}, Status: StatusUnknown, Source: "WIPO"}
	data, err := json.Marshal(tm)
	require.NoError(t, err)

	assert.JSONEq(t, `{"name":"ACME","classes":[],"status":"Unknown","source":"WIPO"}`, string(data))
}

func TestAggregateResult_NilErrorsIsNull(t *testing.T) {
	t.Parallel()

	res := AggregateResult{Query: "acme", Trademarks: []Trademark{}}
	data, err := json.Marshal(res)
	require.NoError(t, err)

	assert.JSONEq(t, `{"query":"acme","total":0,"trademarks":[],"errors":null}`, string(data))
}

func TestSourceResult_Failed(t *testing.T) {
	t.Parallel()

	ok := SourceResult{Source: "wipo"}
	assert.False(t, ok.Failed())

	bad := SourceResult{Source: "wipo", Error: "captcha challenge detected"}
	assert.True(t, bad.Failed())
}
