package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"brandkit/internal/api"
)

func TestNewClientEmptyBind(t *testing.T) {
	client, err := api.NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Status(context.Background()); !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestClientSendsTokenAndBody(t *testing.T) {
	var (
		gotAuth string
		gotReq  api.GenerateRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/generations" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.ContentAsset{ID: "a1", BrandID: gotReq.BrandID, Width: 1080, Height: 1080})
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	asset, err := client.Generate(context.Background(), api.GenerateRequest{
		BrandID: "b1", PlatformID: "instagram_post", Prompt: "launch", ContentType: "image",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotReq.PlatformID != "instagram_post" || gotReq.Prompt != "launch" {
		t.Fatalf("unexpected request body: %+v", gotReq)
	}
	if asset.ID != "a1" || asset.Width != 1080 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: api.ErrorBody{Kind: "AlreadyInProgress", Message: "still running"}})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	_, err := client.RetryExtraction(context.Background(), "b1")
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Kind != "AlreadyInProgress" || apiErr.Message != "still running" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if api.ErrorKind(err) != "AlreadyInProgress" {
		t.Fatalf("ErrorKind = %q", api.ErrorKind(err))
	}
	if api.IsUnavailable(err) {
		t.Fatal("an error response is not unavailability")
	}
}

func TestClientEventsBuildsQuery(t *testing.T) {
	var (
		gotPath  string
		gotQuery url.Values
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_ = json.NewEncoder(w).Encode(api.EventsResponse{
			Events: []api.ProgressEvent{{Sequence: 4, Stage: "crawling", Percent: 20}},
			Next:   4,
		})
	}))
	defer srv.Close()

	client, _ := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "")
	resp, err := client.Events(context.Background(), "b1", api.EventsQuery{Since: 3, Limit: 10, Follow: true})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if gotPath != "/api/brands/b1/events" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery.Get("since") != "3" || gotQuery.Get("limit") != "10" || gotQuery.Get("follow") != "1" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if resp.Next != 4 || len(resp.Events) != 1 || resp.Events[0].Percent != 20 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientUploadLogoMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != "logo.png" || string(data) != "pngbytes" {
			t.Errorf("unexpected file %q %q", header.Filename, data)
		}
		if r.FormValue("position") != "top-right" || r.FormValue("size") != "large" || r.FormValue("opacity") != "0.5" {
			t.Errorf("unexpected fields: %v", r.MultipartForm.Value)
		}
		_ = json.NewEncoder(w).Encode(api.BrandProfile{ID: "b1", Logo: &api.LogoSpec{Position: "top-right"}})
	}))
	defer srv.Close()

	client, _ := api.NewClient(srv.URL, "")
	profile, err := client.UploadLogo(context.Background(), "b1", api.LogoUpload{
		Filename: "logo.png", Data: []byte("pngbytes"), Position: "top-right", Size: "large", Opacity: 0.5,
	})
	if err != nil {
		t.Fatalf("UploadLogo: %v", err)
	}
	if profile.Logo == nil || profile.Logo.Position != "top-right" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestIsUnavailableOnRefusedConnection(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client, _ := api.NewClient(addr, "")
	_, err := client.Brands(context.Background())
	if !api.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}
