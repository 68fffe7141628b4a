package aiextract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/common"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/document"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/extract"
)

func TestValidateResponse(t *testing.T) {
	assert.NoError(t, validateResponse([]byte(`{"fields":[{"key":"revenue_total","value":100.5}]}`)))
	assert.NoError(t, validateResponse([]byte(`{"fields":[]}`)))

	assert.Error(t, validateResponse([]byte(`{"fields":[{"key":"","value":1}]}`)))
	assert.Error(t, validateResponse([]byte(`{"fields":[{"key":"x"}]}`)))
	assert.Error(t, validateResponse([]byte(`{"fields":[{"key":"x","value":"abc"}]}`)))
	assert.Error(t, validateResponse([]byte(`{}`)))
	assert.Error(t, validateResponse([]byte(`not json`)))
}

type approvingResolver struct{}

func (approvingResolver) ResolveApproved(_ context.Context, raw string) (constants.FieldKey, bool) {
	if raw == "车辆运维经费" {
		return constants.ThreePublicVehicleOperation, true
	}
	return "", false
}

func TestToResultClassification(t *testing.T) {
	c := NewClient(Config{Model: "m"}, approvingResolver{}, nil)

	content := `{"fields":[
		{"key":"revenue_total","value":100},
		{"key":"支出总计","value":90},
		{"key":"车辆运维经费","value":3.5},
		{"key":"离退休经费","value":7}
	]}`
	var payload struct {
		Fields []struct {
			Key   string  `json:"key"`
			Value float64 `json:"value"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(content), &payload))

	res := c.toResult(context.Background(), payload.Fields)
	require.Len(t, res.Items, 3)

	byKey := map[constants.FieldKey]extract.Item{}
	for _, it := range res.Items {
		byKey[it.Key] = it
	}
	// canonical key passed through
	assert.Equal(t, constants.ConfidenceMedium, byKey[constants.RevenueTotal].Confidence)
	// vocabulary label resolved
	assert.Equal(t, 90.0, byKey[constants.ExpenditureTotal].Value)
	// approved alias upgraded to HIGH
	assert.Equal(t, constants.ConfidenceHigh, byKey[constants.ThreePublicVehicleOperation].Confidence)
	assert.Equal(t, []string{"离退休经费"}, res.UnmatchedLabels)
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func testInput() extract.Input {
	return extract.Input{Doc: &document.Document{Sheets: []document.Sheet{
		{Name: "收支总表", Rows: [][]string{{"收入总计", "100.00"}}},
	}}}
}

func TestExtractHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, chatResponse(`{"fields":[{"key":"revenue_total","value":100}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Model: "m", APIKey: "test-key", BaseURL: srv.URL}, nil, nil)
	res, err := c.Extract(context.Background(), testInput())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, constants.RevenueTotal, res.Items[0].Key)
	assert.Equal(t, 100.0, res.Items[0].Value)
}

func TestExtractSchemaRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, chatResponse(`{"wrong":"shape"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{Model: "m", BaseURL: srv.URL}, nil, nil)
	_, err := c.Extract(context.Background(), testInput())
	assert.ErrorIs(t, err, common.ErrExtractorResponse)
}

func TestExtractTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{Model: "m", BaseURL: srv.URL}, nil, nil)
	_, err := c.Extract(context.Background(), testInput())
	assert.ErrorIs(t, err, common.ErrExtractorResponse)
}
