package localimg

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// ImportNotice is the message shown after a manual import run.
func ImportNotice(count int) string {
	return fmt.Sprintf("External Image Importer: Imported images in %d post(s).", count)
}

func (a *App) handleImporterSettings(c echo.Context) error {
	if !IsAdmin(c) {
		return c.String(http.StatusForbidden, "Access denied")
	}
	settings, err := a.Store.ImporterSettings()
	if err != nil {
		return err
	}
	page := ImporterPage{
		Settings:  settings,
		PostTypes: PostTypes,
		Message:   c.QueryParam("msg"),
		CSRFToken: CsrfToken(c),
	}
	if vals, ok := c.QueryParams()["imported"]; ok {
		n, _ := strconv.Atoi(vals[0])
		page.Notice = ImportNotice(n)
	}
	return Render(c, a.Views.AdminImporter(page))
}

func (a *App) handleImporterSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.String(http.StatusForbidden, "Access denied")
	}
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	settings := ImporterSettings{
		Enabled:         form.Get("enabled") != "",
		DomainAllowlist: strings.TrimSpace(form.Get("domain_allowlist")),
	}
	for _, t := range form["post_types"] {
		if slices.Contains(PostTypes, t) && !slices.Contains(settings.PostTypes, t) {
			settings.PostTypes = append(settings.PostTypes, t)
		}
	}
	if err := a.Store.SaveImporterSettings(settings); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/importer/?msg=saved")
}

// handleImporterRun imports external images across all published posts. The
// run ignores request cancellation.
func (a *App) handleImporterRun(c echo.Context) error {
	if !IsAdmin(c) {
		return c.String(http.StatusForbidden, "Access denied")
	}
	count, err := a.ImportAll(context.WithoutCancel(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/importer/?imported="+strconv.Itoa(count))
}
