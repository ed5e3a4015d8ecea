package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"balancebook/internal/domain/balance"
	"balancebook/internal/domain/dashboard"
)

func TestHandleQueryBalances(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		err            error
		expectedStatus int
		expected       balance.QueryParams
	}{
		{
			name:           "defaults",
			query:          "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "full query",
			query:          "?start=2024-01-01&end=2024-01-31&currency=EUR&accountId=a1,a2&accountId=a3",
			expectedStatus: http.StatusOK,
			expected: balance.QueryParams{
				Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
				End:        time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
				Currency:   "EUR",
				AccountIDs: []string{"a1", "a2", "a3"},
			},
		},
		{
			name:           "bad date",
			query:          "?start=01/02/2024",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "range too large",
			query:          "?start=2000-01-01",
			err:            balance.ErrRangeTooLarge,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "foreign account",
			query:          "?accountId=other",
			err:            balance.ErrForbidden,
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got balance.QueryParams
			querier := &MockBalanceQuerier{
				QueryFunc: func(ctx context.Context, userID int64, params balance.QueryParams) (*balance.Series, error) {
					got = params
					if tt.err != nil {
						return nil, tt.err
					}
					return &balance.Series{Currency: "USD"}, nil
				},
			}
			handler := NewBalanceHandler(querier, &MockDashboard{})

			req := withUser(httptest.NewRequest(http.MethodGet, "/api/balances"+tt.query, nil), 1)
			w := httptest.NewRecorder()
			handler.HandleQuery(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedStatus == http.StatusOK && !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("expected params %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestHandleDashboard(t *testing.T) {
	var gotCode string
	handler := NewBalanceHandler(&MockBalanceQuerier{}, &MockDashboard{
		SummaryFunc: func(ctx context.Context, userID int64, code string) (*dashboard.Summary, error) {
			gotCode = code
			return &dashboard.Summary{Currency: "GBP"}, nil
		},
	})

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/dashboard?currency=GBP", nil), 1)
	w := httptest.NewRecorder()
	handler.HandleDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotCode != "GBP" {
		t.Errorf("expected currency GBP, got %q", gotCode)
	}

	w = httptest.NewRecorder()
	handler.HandleDashboard(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without user, got %d", w.Code)
	}
}
