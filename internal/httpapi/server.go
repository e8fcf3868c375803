package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lottied/internal/renderer"
	"lottied/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager satisfies it.
type Service interface {
	Load(ctx context.Context, req types.LoadRequest) (types.AnimationStatus, error)
	List() []types.AnimationStatus
	Get(id string) (types.AnimationStatus, error)
	Recycle(id string) error

	Start(id string) (types.AnimationStatus, error)
	Stop(id string) (types.AnimationStatus, error)
	Restart(id string) (types.AnimationStatus, error)
	Seek(ctx context.Context, id string, req types.FrameRequest) (types.AnimationStatus, error)
	SetProgress(id string, req types.ProgressRequest) (types.AnimationStatus, error)
	SetRepeat(id string, req types.RepeatRequest) (types.AnimationStatus, error)
	SetSpeed(id string, req types.SpeedRequest) (types.AnimationStatus, error)
	SetSegment(id string, req types.SegmentRequest) (types.AnimationStatus, error)
	ApplyProperties(id string, req types.PropertiesRequest) (types.AnimationStatus, error)
	ReplaceColors(id string, req types.ColorsRequest) (types.AnimationStatus, error)
	Markers(id string) ([]types.Marker, error)
	Layers(id string) ([]types.Layer, error)
	Frame(ctx context.Context, id string, frame int) (*renderer.Buffer, error)
	ExportGIF(ctx context.Context, id string, req types.ExportRequest, w io.Writer) error

	Library() (types.LibraryResponse, error)
	Prefetch(ctx context.Context, req types.FetchRequest) ([]types.FetchResult, error)
	ClearCache() error
	ResizeLRU(size int) error

	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Instrument)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, http.StatusOK, svc.Status()) })
	r.Get("/library", h.library)
	r.Post("/fetch", h.prefetch)
	r.Delete("/cache", h.clearCache)
	r.Put("/cache/lru", h.resizeLRU)

	r.Route("/animations", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.load)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Delete("/", h.recycle)
			r.Post("/start", h.control(svc.Start))
			r.Post("/stop", h.control(svc.Stop))
			r.Post("/restart", h.control(svc.Restart))
			r.Put("/frame", h.seek)
			r.Put("/progress", h.progress)
			r.Put("/repeat", h.repeat)
			r.Put("/speed", h.speed)
			r.Put("/segment", h.segment)
			r.Post("/properties", h.properties)
			r.Post("/colors", h.colors)
			r.Get("/markers", h.markers)
			r.Get("/layers", h.layers)
			r.Get("/frames/{frame}.png", h.framePNG)
			r.Get("/export.gif", h.exportGIF)
		})
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

type handlers struct {
	svc Service
}

// @Summary      List animations
// @Tags         animations
// @Produce      json
// @Success      200  {object}  types.AnimationsResponse
// @Router       /animations [get]
func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	list := h.svc.List()
	if list == nil {
		list = []types.AnimationStatus{}
	}
	writeJSON(w, http.StatusOK, types.AnimationsResponse{Animations: list})
}

// @Summary      Load an animation
// @Description  Exactly one of file, url, json or library must be set. Blocks until the composition is loaded.
// @Tags         animations
// @Accept       json
// @Produce      json
// @Param        request  body      types.LoadRequest  true  "Load request"
// @Success      201      {object}  types.AnimationStatus
// @Failure      400      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /animations [post]
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start := time.Now()
	lvl := requestLogLevel(r)
	ctx, cancel := requestContext(r)
	defer cancel()
	st, err := h.svc.Load(ctx, req)
	if err != nil {
		logRequest(r, lvl, statusFor(err), time.Since(start), err, "load")
		writeError(w, err)
		return
	}
	logRequest(r, lvl, http.StatusCreated, time.Since(start), nil, "load")
	writeJSON(w, http.StatusCreated, st)
}

// @Summary      Get an animation
// @Tags         animations
// @Produce      json
// @Param        id   path      string  true  "Animation id"
// @Success      200  {object}  types.AnimationStatus
// @Failure      404  {object}  types.ErrorResponse
// @Router       /animations/{id} [get]
func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(chi.URLParam(r, "id"))
	respond(w, st, err)
}

// @Summary      Recycle an animation
// @Tags         animations
// @Param        id   path  string  true  "Animation id"
// @Success      204
// @Failure      404  {object}  types.ErrorResponse
// @Router       /animations/{id} [delete]
func (h *handlers) recycle(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Recycle(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// control adapts start, stop and restart.
func (h *handlers) control(fn func(id string) (types.AnimationStatus, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := fn(chi.URLParam(r, "id"))
		respond(w, st, err)
	}
}

// @Summary      Seek to a frame
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Animation id"
// @Param        request  body      types.FrameRequest  true  "Target frame"
// @Success      200      {object}  types.AnimationStatus
// @Failure      400      {object}  types.ErrorResponse
// @Failure      409      {object}  types.ErrorResponse
// @Router       /animations/{id}/frame [put]
func (h *handlers) seek(w http.ResponseWriter, r *http.Request) {
	var req types.FrameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	st, err := h.svc.Seek(ctx, chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Seek by progress
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Animation id"
// @Param        request  body      types.ProgressRequest  true  "Fraction or milliseconds"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/progress [put]
func (h *handlers) progress(w http.ResponseWriter, r *http.Request) {
	var req types.ProgressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.SetProgress(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Set repeat policy
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Animation id"
// @Param        request  body      types.RepeatRequest  true  "Repeat policy"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/repeat [put]
func (h *handlers) repeat(w http.ResponseWriter, r *http.Request) {
	var req types.RepeatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.SetRepeat(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Set speed
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string              true  "Animation id"
// @Param        request  body      types.SpeedRequest  true  "Speed multiplier"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/speed [put]
func (h *handlers) speed(w http.ResponseWriter, r *http.Request) {
	var req types.SpeedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.SetSpeed(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Limit playback to a segment
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string                true  "Animation id"
// @Param        request  body      types.SegmentRequest  true  "Marker or window"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/segment [put]
func (h *handlers) segment(w http.ResponseWriter, r *http.Request) {
	var req types.SegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.SetSegment(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Override properties
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Animation id"
// @Param        request  body      types.PropertiesRequest  true  "Property updates"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/properties [post]
func (h *handlers) properties(w http.ResponseWriter, r *http.Request) {
	var req types.PropertiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.ApplyProperties(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      Replace shape colors
// @Tags         playback
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Animation id"
// @Param        request  body      types.ColorsRequest  true  "Color replacements"
// @Success      200      {object}  types.AnimationStatus
// @Router       /animations/{id}/colors [post]
func (h *handlers) colors(w http.ResponseWriter, r *http.Request) {
	var req types.ColorsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.ReplaceColors(chi.URLParam(r, "id"), req)
	respond(w, st, err)
}

// @Summary      List markers
// @Tags         animations
// @Produce      json
// @Param        id   path      string  true  "Animation id"
// @Success      200  {object}  types.MarkersResponse
// @Router       /animations/{id}/markers [get]
func (h *handlers) markers(w http.ResponseWriter, r *http.Request) {
	ms, err := h.svc.Markers(chi.URLParam(r, "id"))
	if ms == nil {
		ms = []types.Marker{}
	}
	respond(w, types.MarkersResponse{Markers: ms}, err)
}

// @Summary      List layers
// @Tags         animations
// @Produce      json
// @Param        id   path      string  true  "Animation id"
// @Success      200  {object}  types.LayersResponse
// @Router       /animations/{id}/layers [get]
func (h *handlers) layers(w http.ResponseWriter, r *http.Request) {
	ls, err := h.svc.Layers(chi.URLParam(r, "id"))
	if ls == nil {
		ls = []types.Layer{}
	}
	respond(w, types.LayersResponse{Layers: ls}, err)
}

// @Summary      Render one frame
// @Description  Seeks to the frame, waits for it to be decoded and returns it as PNG.
// @Tags         animations
// @Produce      png
// @Param        id     path  string   true  "Animation id"
// @Param        frame  path  integer  true  "Frame index"
// @Success      200
// @Failure      400  {object}  types.ErrorResponse
// @Failure      422  {object}  types.ErrorResponse
// @Router       /animations/{id}/frames/{frame}.png [get]
func (h *handlers) framePNG(w http.ResponseWriter, r *http.Request) {
	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil || frame < 0 {
		writeJSONError(w, http.StatusBadRequest, "frame must be a non-negative integer")
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	buf, err := h.svc.Frame(ctx, chi.URLParam(r, "id"), frame)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame", strconv.Itoa(frame))
	if err := png.Encode(w, buf.ToImage()); err != nil && zlog != nil {
		zlog.Warn().Err(err).Int("frame", frame).Msg("png encode")
	}
}

// @Summary      Export frames as GIF
// @Description  Seeks through start..end every step frames and returns them as an animated GIF.
// @Tags         animations
// @Produce      gif
// @Param        id          path   string   true   "Animation id"
// @Param        start       query  integer  false  "First frame"
// @Param        end         query  integer  false  "Last frame (defaults to the final frame)"
// @Param        step        query  integer  false  "Frame step"
// @Param        width       query  integer  false  "Output width"
// @Param        height      query  integer  false  "Output height"
// @Param        background  query  string   false  "Background #rrggbb"
// @Param        delay       query  integer  false  "Delay in hundredths of a second"
// @Param        dither      query  boolean  false  "Floyd-Steinberg dithering"
// @Success      200
// @Failure      400  {object}  types.ErrorResponse
// @Router       /animations/{id}/export.gif [get]
func (h *handlers) exportGIF(w http.ResponseWriter, r *http.Request) {
	req, err := exportRequest(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	var out bytes.Buffer
	if err := h.svc.ExportGIF(ctx, chi.URLParam(r, "id"), req, &out); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(out.Len()))
	if _, err := out.WriteTo(w); err != nil && zlog != nil {
		zlog.Warn().Err(err).Msg("gif write")
	}
}

func exportRequest(q url.Values) (types.ExportRequest, error) {
	req := types.ExportRequest{Background: q.Get("background")}
	ints := map[string]*int{
		"start": &req.Start, "end": &req.End, "step": &req.Step,
		"width": &req.Width, "height": &req.Height, "delay": &req.Delay,
	}
	for name, dst := range ints {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%s must be an integer", name)
		}
		*dst = n
	}
	if v := q.Get("dither"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("dither must be a boolean")
		}
		req.Dither = b
	}
	return req, nil
}

// @Summary      List the animation library
// @Tags         library
// @Produce      json
// @Success      200  {object}  types.LibraryResponse
// @Router       /library [get]
func (h *handlers) library(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Library()
	respond(w, res, err)
}

// @Summary      Prefetch URLs into the network cache
// @Tags         cache
// @Accept       json
// @Produce      json
// @Param        request  body      types.FetchRequest  true  "URLs"
// @Success      200      {object}  types.FetchResponse
// @Router       /fetch [post]
func (h *handlers) prefetch(w http.ResponseWriter, r *http.Request) {
	var req types.FetchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r)
	defer cancel()
	res, err := h.svc.Prefetch(ctx, req)
	respond(w, types.FetchResponse{Results: res}, err)
}

// @Summary      Clear the resource cache
// @Tags         cache
// @Success      204
// @Router       /cache [delete]
func (h *handlers) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearCache(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Resize the dedup LRU
// @Tags         cache
// @Accept       json
// @Param        request  body  types.LRURequest  true  "New size"
// @Success      204
// @Router       /cache/lru [put]
func (h *handlers) resizeLRU(w http.ResponseWriter, r *http.Request) {
	var req types.LRURequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResizeLRU(req.Size); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON enforces the content type and body limit, then decodes into v.
// It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// requestContext joins the request with the server base context and the
// configured request timeout.
func requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if requestTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, requestTimeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

func respond(w http.ResponseWriter, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}
