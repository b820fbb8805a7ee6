package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"brandkit/internal/api"
	"brandkit/internal/brand"
	"brandkit/internal/brandguide"
	"brandkit/internal/logging"
	"brandkit/internal/media/raster"
	"brandkit/internal/services"
)

// Upload limits for logo files.
const (
	maxLogoBytes  = 10 << 20
	maxLogoPixels = 4096 * 4096
)

func (s *apiServer) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req api.ExtractRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeServiceError(w, r, services.Wrap(services.ErrValidation, "api", "extract", "url is required", nil))
		return
	}
	profile, err := s.daemon.deps.Extraction.Start(r.Context(), req.URL, req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromProfile(profile))
}

func (s *apiServer) handleListBrands(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.daemon.deps.Store.ListBrands(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BrandListResponse{Brands: api.FromProfiles(profiles)})
}

func (s *apiServer) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	profile, err := s.daemon.deps.Store.GetBrand(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProfile(profile))
}

func (s *apiServer) handleRetryExtraction(w http.ResponseWriter, r *http.Request) {
	profile, err := s.daemon.deps.Extraction.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.FromProfile(profile))
}

func (s *apiServer) handleCancelExtraction(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.deps.Extraction.Cancel(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	profile, err := s.daemon.deps.Store.GetBrand(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProfile(profile))
}

func (s *apiServer) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.deps.Store.Confirm(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	profile, err := s.daemon.deps.Store.GetBrand(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromProfile(profile))
}

func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.daemon.deps.Store.GetBrand(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	follow := queryFlag(query.Get("follow"))

	ctx := r.Context()
	if follow {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, longPollTimeout)
		defer cancel()
	}
	evts, next, err := s.daemon.deps.Events.Fetch(ctx, id, since, limit, follow)
	if err != nil && !isContextDone(err) {
		s.writeServiceError(w, r, err)
		return
	}
	if next < since {
		next = since
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: api.FromEvents(evts), Next: next})
}

func (s *apiServer) handleUploadLogo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	current, err := s.daemon.deps.Store.GetBrand(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes+(1<<20))
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrValidation, "api", "upload logo", "invalid multipart form", err))
		return
	}
	position, err := brand.ParsePosition(r.FormValue("position"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	size, err := brand.ParseSize(r.FormValue("size"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	opacity := 1.0
	if raw := strings.TrimSpace(r.FormValue("opacity")); raw != "" {
		opacity, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeServiceError(w, r, services.Wrap(services.ErrValidation, "api", "upload logo", fmt.Sprintf("opacity %q is not a number", raw), nil))
			return
		}
	}
	if err := brand.ValidateOpacity(opacity); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	data, contentType, width, height, err := readLogo(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ext := "png"
	if contentType == brand.LogoJPEG {
		ext = "jpg"
	}
	key := fmt.Sprintf("brands/%s/logo-%s.%s", id, uuid.NewString()[:8], ext)
	obj, err := s.daemon.deps.Blobs.PutBytes(key, data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	spec, err := brand.NewLogoSpec(obj.Ref, contentType, width, height, position, size, opacity)
	if err == nil {
		err = s.daemon.deps.Store.SetLogo(ctx, id, spec)
	}
	if err != nil {
		_ = s.daemon.deps.Blobs.Delete(obj.Ref)
		s.writeServiceError(w, r, err)
		return
	}
	if current.Logo != nil && current.Logo.AssetRef != obj.Ref {
		if err := s.daemon.deps.Blobs.Delete(current.Logo.AssetRef); err != nil {
			logging.WarnWithContext(s.logger, "failed to delete replaced logo", "logo_cleanup_failed",
				logging.String(logging.FieldBrandID, id),
				logging.Error(err),
			)
		}
	}

	updated, err := s.daemon.deps.Store.GetBrand(ctx, id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.logger.Info("logo updated",
		logging.String(logging.FieldEventType, "logo_updated"),
		logging.String(logging.FieldBrandID, id),
		logging.String("position", string(position)),
		logging.String("size", string(size)),
	)
	s.writeJSON(w, http.StatusOK, api.FromProfile(updated))
}

// readLogo loads the uploaded file and sniffs its format and dimensions.
func readLogo(r *http.Request) ([]byte, string, int, int, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, "", 0, 0, services.Wrap(services.ErrValidation, "api", "upload logo", "file field is required", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxLogoBytes+1))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("read logo: %w", err)
	}
	if len(data) > maxLogoBytes {
		return nil, "", 0, 0, services.Wrap(services.ErrValidation, "api", "upload logo",
			fmt.Sprintf("logo exceeds %d bytes", maxLogoBytes), nil)
	}
	cfg, format, err := raster.DecodeConfig(data, maxLogoPixels)
	switch {
	case errors.Is(err, raster.ErrTooLarge), errors.Is(err, raster.ErrEmpty):
		return nil, "", 0, 0, services.Wrap(services.ErrValidation, "api", "upload logo",
			fmt.Sprintf("logo is %dx%d; it must be non-empty and at most %d pixels", cfg.Width, cfg.Height, maxLogoPixels), err)
	case err != nil:
		return nil, "", 0, 0, services.Wrap(services.ErrValidation, "api", "upload logo", "logo must be a PNG or JPEG image", err)
	}
	switch format {
	case "png":
		return data, brand.LogoPNG, cfg.Width, cfg.Height, nil
	case "jpeg":
		return data, brand.LogoJPEG, cfg.Width, cfg.Height, nil
	}
	return nil, "", 0, 0, services.Wrap(services.ErrValidation, "api", "upload logo",
		fmt.Sprintf("logo format %s is not supported; use PNG or JPEG", format), nil)
}

func (s *apiServer) handleGuide(w http.ResponseWriter, r *http.Request) {
	profile, err := s.daemon.deps.Store.GetBrand(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = io.WriteString(w, brandguide.Markdown(profile))
	case "html":
		page, err := brandguide.HTML(profile)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	default:
		s.writeServiceError(w, r, services.Wrap(services.ErrUnsupportedFormat, "api", "guide", "guide format must be md or html", nil))
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Wrap(services.ErrValidation, "api", "decode", "request body is required", nil)
		}
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}
