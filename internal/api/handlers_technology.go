// handlers_technology.go - Views of decoded technologies
package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/imr/Electric8/internal/export"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/rules"
	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/techxml"
)

// maxFragmentSize bounds menu fragments and inline rule tables.
const maxFragmentSize = 1 << 20

// TechnologyHandlerImpl implements the TechnologyHandler interface
type TechnologyHandlerImpl struct {
	sessionMgr SessionManager
	rules      *rules.Registry
}

// NewTechnologyHandler creates a new technology handler. registry may be
// nil, in which case evaluation needs an inline rule table.
func NewTechnologyHandler(sessionMgr SessionManager, registry *rules.Registry) TechnologyHandler {
	return &TechnologyHandlerImpl{
		sessionMgr: sessionMgr,
		rules:      registry,
	}
}

// technology returns the decoded technology of a complete session.
func (h *TechnologyHandlerImpl) technology(c echo.Context) (*tech.Technology, error) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, NewValidationError("sessionId")
	}

	sess, ok := h.sessionMgr.GetSession(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	switch sess.Status {
	case models.SessionStatusComplete:
	case models.SessionStatusError:
		return nil, NewConflictError("session failed to decode: " + id)
	default:
		return nil, NewConflictError("session is still decoding: " + id)
	}

	t, ok := h.sessionMgr.Technology(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return t, nil
}

// HandleCanonicalXML re-emits the technology as a pretty XML document.
// The single-line form exists only for the menu palette (see
// HandleMenuPalette).
func (h *TechnologyHandlerImpl) HandleCanonicalXML(c echo.Context) error {
	t, err := h.technology(c)
	if err != nil {
		return err
	}

	switch strings.ToLower(c.QueryParam("mode")) {
	case "", "pretty":
	case "flat":
		return NewBadRequestError("flat mode is only available for the menu palette", nil)
	default:
		return NewBadRequestError("unknown mode: "+c.QueryParam("mode"), nil)
	}

	var buf bytes.Buffer
	if err := techxml.NewEncoder(techxml.Pretty).EncodeTechnology(&buf, t); err != nil {
		return &APIError{
			Status:  http.StatusUnprocessableEntity,
			Code:    "ENCODE_ERROR",
			Message: "technology cannot be written",
			Details: err.Error(),
		}
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, buf.Bytes())
}

// HandleMenuPalette returns the flat component menu markup
func (h *TechnologyHandlerImpl) HandleMenuPalette(c echo.Context) error {
	t, err := h.technology(c)
	if err != nil {
		return err
	}
	if t.MenuPalette == nil {
		return NewNotFoundError("menu palette", t.Name)
	}

	menu, err := techxml.MenuPaletteString(t.MenuPalette)
	if err != nil {
		return NewInternalError("failed to write menu palette", err)
	}

	return c.Blob(http.StatusOK, echo.MIMEApplicationXMLCharsetUTF8, []byte(menu))
}

// HandleParseMenuFragment decodes a menu fragment from the request body
// against the session's arcs and nodes and returns its shape together
// with the canonical flat markup.
func (h *TechnologyHandlerImpl) HandleParseMenuFragment(c echo.Context) error {
	t, err := h.technology(c)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFragmentSize))
	if err != nil {
		return NewBadRequestError("failed to read request body", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return NewValidationError("body")
	}

	palette, err := techxml.DecodeMenuPalette(string(body), t.Nodes, t.Arcs)
	if err != nil {
		return NewDecodeError("invalid menu fragment", err)
	}
	menu, err := techxml.MenuPaletteString(palette)
	if err != nil {
		return NewInternalError("failed to write menu palette", err)
	}

	return c.JSON(http.StatusOK, menuFragmentResponse{
		Columns: palette.NumColumns,
		Rows:    palette.Rows(),
		Boxes:   len(palette.Boxes),
		Menu:    menu,
	})
}

// HandleSummary exports the technology summary. ?format selects json,
// msgpack or cbor.
func (h *TechnologyHandlerImpl) HandleSummary(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("invalid format", err)
	}
	t, err := h.technology(c)
	if err != nil {
		return err
	}

	return respondFormatted(c, format, export.Summarize(t))
}

// HandleEvaluate resolves node sizes and rule sets against a rule table.
// The table is either a registered one named by ?rules or a YAML body.
func (h *TechnologyHandlerImpl) HandleEvaluate(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return NewBadRequestError("invalid format", err)
	}
	t, err := h.technology(c)
	if err != nil {
		return err
	}

	table, err := h.ruleTable(c)
	if err != nil {
		return err
	}

	ev, err := rules.Evaluate(t, table, c.QueryParam("ruleSet"))
	if err != nil {
		return NewNotFoundError("rule set", c.QueryParam("ruleSet"))
	}

	return respondFormatted(c, format, ev)
}

func (h *TechnologyHandlerImpl) ruleTable(c echo.Context) (*rules.Table, error) {
	if id := c.QueryParam("rules"); id != "" {
		if h.rules == nil {
			return nil, NewNotFoundError("rule table", id)
		}
		table, ok := h.rules.Get(id)
		if !ok {
			return nil, NewNotFoundError("rule table", id)
		}
		return table, nil
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFragmentSize))
	if err != nil {
		return nil, NewBadRequestError("failed to read request body", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, NewValidationError("rules")
	}
	table, err := rules.ParseRulesFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, NewBadRequestError("invalid rule table", err)
	}
	return table, nil
}

func respondFormatted(c echo.Context, format export.Format, v any) error {
	data, err := export.Marshal(format, v)
	if err != nil {
		return NewInternalError("failed to encode response", err)
	}
	return c.Blob(http.StatusOK, format.ContentType(), data)
}

type menuFragmentResponse struct {
	Columns int    `json:"columns"`
	Rows    int    `json:"rows"`
	Boxes   int    `json:"boxes"`
	Menu    string `json:"menu"`
}
