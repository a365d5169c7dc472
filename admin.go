package localimg

import (
	"crypto/subtle"
	"database/sql"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	return a.renderAdminDashboard(c, c.QueryParam("msg"))
}

func (a *App) handleAdminPost(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	slug := c.Param("slug")
	post, err := a.Store.GetPost(slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	var autosave *Revision
	if rev, err := a.Store.LatestRevision(slug, RevisionAutosave); err == nil {
		autosave = &rev
	} else if err != sql.ErrNoRows {
		return err
	}
	return Render(c, a.Views.AdminForm(post, autosave, CsrfToken(c)))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) != 1 {
		a.loginLimiter.Record(ip)
		return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
	}
	if err := setAdminSession(c); err != nil {
		return err
	}
	a.loginLimiter.Reset(ip)
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminSave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	post, msg, err := postFromForm(c)
	if err != nil {
		return err
	}
	if msg != "" {
		return c.Redirect(http.StatusSeeOther, "/admin/?msg="+msg)
	}
	if err := a.SavePost(c.Request().Context(), post); err != nil {
		return err
	}
	return a.renderAdminDashboard(c, "saved")
}

// handleAdminAutosave stores the editor's current content as an autosave
// revision without touching the post itself.
func (a *App) handleAdminAutosave(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	post, msg, err := postFromForm(c)
	if err != nil {
		return err
	}
	if msg != "" {
		return c.String(http.StatusBadRequest, "Slug is required")
	}
	rev, err := a.AutosavePost(c.Request().Context(), post)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, "Autosaved at "+rev.SavedAt)
}

// postFromForm reads the admin post form. A non-empty msg is a validation
// problem to show the user, already query-escaped.
func postFromForm(c echo.Context) (Post, string, error) {
	if err := c.Request().ParseForm(); err != nil {
		return Post{}, "", err
	}
	title := strings.TrimSpace(c.FormValue("title"))
	slug := strings.TrimSpace(c.FormValue("slug"))
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return Post{}, "Slug+is+required.+Add+a+title+or+slug.", nil
	}
	date := strings.TrimSpace(c.FormValue("date"))
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return Post{}, "Invalid+date+format.+Use+YYYY-MM-DD.", nil
	}
	postType := strings.TrimSpace(c.FormValue("type"))
	if !slices.Contains(PostTypes, postType) {
		postType = TypePost
	}
	tags := strings.Split(c.FormValue("tags"), ",")
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
	}
	return Post{
		Slug:      slug,
		Title:     title,
		Date:      date,
		Type:      postType,
		Tags:      FilterEmpty(tags),
		Summary:   c.FormValue("summary"),
		Content:   c.FormValue("content"),
		Published: c.FormValue("published") != "",
	}, "", nil
}

func (a *App) handleAdminDelete(c echo.Context) error {
	if !IsAdmin(c) {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	slug := c.Param("slug")
	if err := a.Store.DeletePost(slug); err != nil {
		return err
	}
	return a.renderAdminDashboard(c, "deleted")
}

func (a *App) renderAdminDashboard(c echo.Context, msg string) error {
	posts, err := a.Store.ListAllPosts()
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(posts, msg, CsrfToken(c)))
}
