package models

import (
	"testing"
	"time"
)

func TestRequestStatusActive(t *testing.T) {
	cases := []struct {
		status RequestStatus
		want   bool
	}{
		{RequestPending, true},
		{RequestApproved, true},
		{RequestRejected, false},
		{RequestExpired, false},
	}
	for _, tc := range cases {
		if got := tc.status.Active(); got != tc.want {
			t.Errorf("%s.Active() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDownloadRequestIsValid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		req  DownloadRequest
		want bool
	}{
		{
			name: "approved with allowance",
			req:  DownloadRequest{Status: RequestApproved, TokenExpiresAt: &future, MaxDownloads: 1},
			want: true,
		},
		{
			name: "pending never grants",
			req:  DownloadRequest{Status: RequestPending, TokenExpiresAt: &future, MaxDownloads: 1},
			want: false,
		},
		{
			name: "rejected never grants",
			req:  DownloadRequest{Status: RequestRejected, MaxDownloads: 1},
			want: false,
		},
		{
			name: "token past expiry",
			req:  DownloadRequest{Status: RequestApproved, TokenExpiresAt: &past, MaxDownloads: 1},
			want: false,
		},
		{
			name: "valid at the expiry instant",
			req:  DownloadRequest{Status: RequestApproved, TokenExpiresAt: &now, MaxDownloads: 1},
			want: true,
		},
		{
			name: "allowance spent",
			req:  DownloadRequest{Status: RequestApproved, TokenExpiresAt: &future, DownloadCount: 1, MaxDownloads: 1},
			want: false,
		},
		{
			name: "no expiry recorded",
			req:  DownloadRequest{Status: RequestApproved, MaxDownloads: 1},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.req.IsValid(now); got != tc.want {
				t.Errorf("IsValid = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDownloadRequestExhausted(t *testing.T) {
	r := DownloadRequest{DownloadCount: 2, MaxDownloads: 3}
	if r.Exhausted() {
		t.Error("2 of 3 should not be exhausted")
	}
	r.DownloadCount = 3
	if !r.Exhausted() {
		t.Error("3 of 3 should be exhausted")
	}
}
