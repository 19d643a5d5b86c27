package cosmos

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newRESTClient(url string) *Client {
	return &Client{
		restEndpoint: url,
		httpClient:   http.DefaultClient,
		logger:       zap.NewNop(),
	}
}

func TestQueryContract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/cosmwasm/wasm/v1/contract/" + testContract + "/smart/"
		if !strings.HasPrefix(r.URL.Path, prefix) {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(r.URL.Path, prefix))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var q map[string]json.RawMessage
		if err := json.Unmarshal(raw, &q); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := q["token_info"]; !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"name":"Desk Token","symbol":"DESK","decimals":6,"total_supply":"10"}}`))
	}))
	defer server.Close()

	c := newRESTClient(server.URL)
	data, err := c.QueryContract(context.Background(), testContract, tokenInfoQuery{})
	if err != nil {
		t.Fatalf("QueryContract() error = %v", err)
	}

	var resp TokenInfoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Symbol != "DESK" || resp.TotalSupply.Int64() != 10 {
		t.Errorf("response = %+v", resp)
	}
}

func TestQueryContractErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":2,"message":"query wasm contract failed"}`))
	}))
	defer server.Close()

	c := newRESTClient(server.URL)
	_, err := c.QueryContract(context.Background(), testContract, tokenInfoQuery{})
	if err == nil || !strings.Contains(err.Error(), "query wasm contract failed") {
		t.Errorf("QueryContract() error = %v", err)
	}
}

func TestGetAccountInfo(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantAccount  uint64
		wantSequence uint64
		wantErr      bool
	}{
		{
			name:         "existing account",
			body:         `{"account":{"account_number":"12","sequence":"7"}}`,
			wantAccount:  12,
			wantSequence: 7,
		},
		{
			name:        "fresh account",
			body:        `{"account":{"account_number":"3"}}`,
			wantAccount: 3,
		},
		{
			name:    "malformed number",
			body:    `{"account":{"account_number":"abc","sequence":"1"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/cosmos/auth/v1beta1/accounts/"+testSender {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newRESTClient(server.URL)
			account, sequence, err := c.GetAccountInfo(context.Background(), testSender)
			if (err != nil) != tt.wantErr {
				t.Fatalf("GetAccountInfo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if account != tt.wantAccount || sequence != tt.wantSequence {
				t.Errorf("GetAccountInfo() = %d, %d", account, sequence)
			}
		})
	}
}

func TestBroadcastErrorMessage(t *testing.T) {
	err := &BroadcastError{Code: 13, Log: "insufficient fees"}
	if got := err.Error(); got != "transaction failed with code 13: insufficient fees" {
		t.Errorf("Error() = %q", got)
	}
}
