package api

import (
	"bytes"
	"encoding/json"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"pastebin/cfg"
	"pastebin/metrics"
	"pastebin/pkg/domain"
	"pastebin/svc/cache"
	"pastebin/svc/hist"
	"pastebin/svc/util"
	"pastebin/svc/web"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/text/unicode/norm"
)

const shortURLField = "shortUrl"

const formOverhead = 4096

type Hdl struct {
	store  *hist.Store
	render *web.Renderer
	pages  *cache.PageCache
	cfg    *cfg.Cfg
}

type HistoryResp struct {
	Active                  []domain.Entry `json:"active"`
	Pinned                  []domain.Entry `json:"pinned"`
	Deleted                 []domain.Entry `json:"deleted"`
	MaxActiveEntries        int            `json:"max_active_entries"`
	MaxDeletedRetentionDays int            `json:"max_deleted_retention_days"`
	Version                 uint64         `json:"version"`
}

// Root serves the text of the entry whose short URL equals the request path,
// or the main page when no entry claims it.
func (h *Hdl) Root(w http.ResponseWriter, r *http.Request) {
	if alias := strings.TrimPrefix(r.URL.Path, "/"); alias != "" {
		if e, ok := h.store.LookupShortURL(alias); ok {
			metrics.ShortURLHits.Inc()
			hlog.FromRequest(r).Debug().Str("alias", alias).Str("entry", e.ID.String()).Msg("short url hit")
			writeHTML(w, http.StatusOK, []byte(e.Text))
			return
		}
	}
	h.page(w, r, web.PageIndex)
}

func (h *Hdl) ViewDeleted(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, web.PageDeleted)
}

func (h *Hdl) ShortURLs(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, web.PageShortURLs)
}

func (h *Hdl) Paste(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	if err := h.parseForm(w, r); err != nil {
		h.formError(w, r, err)
		return
	}
	values := r.PostForm["text"]
	if len(values) != 1 {
		h.page(w, r, web.PageIndex)
		return
	}
	text := values[0]
	if r.PostFormValue("fixPercent") != "" {
		// The page pre-encodes '%' so that a literal percent survives the
		// browser's own form encoding; undo that second layer.
		if decoded, err := url.PathUnescape(text); err == nil {
			text = decoded
		} else {
			log.Debug().Err(err).Msg("fixPercent decode failed, keeping text as sent")
		}
	}
	if int64(len(text)) > h.cfg.MaxPasteSize {
		log.Warn().Int("size", len(text)).Msg("paste exceeds maximum size")
		h.formError(w, r, domain.ErrPasteTooLarge)
		return
	}
	text = sanitizeContent(text)
	if strings.TrimSpace(text) == "" {
		h.page(w, r, web.PageIndex)
		return
	}
	if r.PostFormValue("preformatted") != "" {
		text = "<pre>" + text + "</pre>"
	}
	h.store.Paste(text)
	log.Info().
		Int("size", len(text)).
		Str("preview", util.RedactPasteContent(text)).
		Msg("paste created")
	h.page(w, r, web.PageIndex)
}

// transition adapts a store operation taking an entry id into a handler. An
// unknown or malformed id is a no-op and still renders the main page.
func (h *Hdl) transition(op string, fn func(id string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.page(w, r, web.PageIndex)
			return
		}
		if err := h.parseForm(w, r); err != nil {
			h.formError(w, r, err)
			return
		}
		ids := r.PostForm["id"]
		if len(ids) == 1 {
			changed := fn(ids[0])
			hlog.FromRequest(r).Info().
				Str("op", op).
				Str("id", ids[0]).
				Bool("changed", changed).
				Msg("history transition")
		}
		h.page(w, r, web.PageIndex)
	}
}

func (h *Hdl) Pin() http.HandlerFunc       { return h.transition("pin", h.store.Pin) }
func (h *Hdl) Delete() http.HandlerFunc    { return h.transition("delete", h.store.Delete) }
func (h *Hdl) DeletePin() http.HandlerFunc { return h.transition("delete_pin", h.store.DeletePin) }
func (h *Hdl) Undelete() http.HandlerFunc  { return h.transition("undelete", h.store.Undelete) }

// UpdateShortURLs applies every shortUrl<uuid> field. Non-empty values are
// counted; empty values clear the alias to "".
func (h *Hdl) UpdateShortURLs(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.message(w, r, http.StatusBadRequest, web.Messages{Error: "Please try your request again."})
		return
	}
	count := 0
	for key, values := range r.PostForm {
		id, ok := strings.CutPrefix(key, shortURLField)
		if !ok || len(values) != 1 {
			continue
		}
		value := values[0]
		if !h.store.SetShortURL(id, value) {
			continue
		}
		if value != "" {
			count++
		}
	}
	hlog.FromRequest(r).Info().Int("count", count).Msg("short urls updated")
	h.message(w, r, http.StatusOK, web.Messages{Info: "Number of short URLs set (total):  " + strconv.Itoa(count) + "."})
}

func (h *Hdl) History(w http.ResponseWriter, r *http.Request) {
	v := h.store.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HistoryResp{
		Active:                  v.Active,
		Pinned:                  v.Pinned,
		Deleted:                 v.Deleted,
		MaxActiveEntries:        v.MaxActiveEntries,
		MaxDeletedRetentionDays: v.MaxDeletedRetentionDays,
		Version:                 v.Version,
	})
}

// page writes a message-free page, through the page cache.
func (h *Hdl) page(w http.ResponseWriter, r *http.Request, page string) {
	v := h.store.Snapshot()
	body, err := h.pages.GetOrRender(page, v.Version, func() ([]byte, error) {
		return h.render.Render(page, v)
	})
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("page", page).Msg("render failed")
		writeErr(w, domain.ErrInternalServer, util.GetRequestID(r.Context()))
		return
	}
	writeHTML(w, http.StatusOK, body)
}

// message renders the main page with a one-off message; never cached.
func (h *Hdl) message(w http.ResponseWriter, r *http.Request, status int, msg web.Messages) {
	var buf bytes.Buffer
	if err := h.render.Index(&buf, h.store.Snapshot(), msg); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render failed")
		writeErr(w, domain.ErrInternalServer, util.GetRequestID(r.Context()))
		return
	}
	writeHTML(w, status, buf.Bytes())
}

func (h *Hdl) formError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.Status(err)
	msg := domain.ToResp(err).Error.Msg
	hlog.FromRequest(r).Warn().Err(err).Int("status", status).Msg("rejected form")
	h.message(w, r, status, web.Messages{Error: msg})
}

// parseForm bounds the body and maps parse failures to domain errors. Form
// encoding can triple the size of the text.
func (h *Hdl) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPasteSize*3+formOverhead)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.Wrap(domain.ErrPasteTooLarge, err.Error())
		}
		return errors.Wrap(domain.ErrInvalidRequest, err.Error())
	}
	return nil
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// sanitizeContent normalizes to NFC, drops invalid UTF-8 and control
// characters other than line breaks and tabs, then escapes HTML.
func sanitizeContent(s string) string {
	s = norm.NFC.String(s)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	return html.EscapeString(s)
}
