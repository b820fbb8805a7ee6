package daemon

import (
	"fmt"
	"net/http"
	"time"

	"brandkit/internal/api"
	"brandkit/internal/brand"
	"brandkit/internal/logging"
)

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body api.GenerateRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	req, err := brand.NewGenerationRequest(body.BrandID, body.PlatformID, body.Prompt, body.CopyText, body.ContentType,
		body.DurationSeconds, s.cfg.Generation.DefaultVideoSeconds)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Generation outlives the server-wide write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(s.cfg.GenerationTimeout() + 30*time.Second)); err != nil {
		s.logger.Debug("write deadline not extended", logging.Error(err))
	}

	asset, err := s.daemon.deps.Generation.Generate(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.FromAsset(asset))
}

func (s *apiServer) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.daemon.deps.Store.ListAssets(r.Context(), r.URL.Query().Get("brand"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.AssetListResponse{Assets: api.FromAssets(assets)})
}

func (s *apiServer) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	asset, err := s.daemon.deps.Store.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAsset(asset))
}

func (s *apiServer) handleAssetFile(w http.ResponseWriter, r *http.Request) {
	asset, err := s.daemon.deps.Store.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.serveBlob(w, r, asset.FinalRef, asset.FinalContentType(), fmt.Sprintf("%s.%s", asset.ID, asset.FinalExtension()), asset.CreatedAt)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	asset, err := s.daemon.deps.Store.GetAsset(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	query := r.URL.Query()
	format := query.Get("format")
	if format == "" {
		format = asset.FinalExtension()
	}
	quality := query.Get("quality")
	if quality == "" {
		quality = "hd"
	}

	// First renders of video variants can take longer than the write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(s.cfg.GenerationTimeout())); err != nil {
		s.logger.Debug("write deadline not extended", logging.Error(err))
	}

	variant, err := s.daemon.deps.Export.Export(r.Context(), asset, format, quality)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromVariant(variant))
}

func (s *apiServer) handleVariant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	variant, err := s.daemon.deps.Export.Lookup(r.Context(), id, r.PathValue("format"), r.PathValue("quality"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	name := fmt.Sprintf("%s-%s.%s", id, variant.Quality, variant.Format)
	s.serveBlob(w, r, variant.BlobRef, variant.ContentType, name, variant.CreatedAt)
}

func (s *apiServer) serveBlob(w http.ResponseWriter, r *http.Request, ref, contentType, filename string, modTime time.Time) {
	f, err := s.daemon.deps.Blobs.Open(ref)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, modTime, f)
}
