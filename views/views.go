// Package views provides the default admin components for localimg. Sites
// that want their own look pass their own localimg.ViewFuncs instead.
package views

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"slices"
	"strconv"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/eringen/localimg"
)

// Default returns the built-in admin views.
func Default(siteName string) localimg.ViewFuncs {
	return localimg.ViewFuncs{
		AdminLogin: func(showError bool, csrfToken string) templ.Component {
			return page(siteName, "Admin", func(b *bytes.Buffer) { writeLogin(b, showError, csrfToken) })
		},
		AdminDashboard: func(posts []localimg.Post, message string, csrfToken string) templ.Component {
			return page(siteName, "Posts", func(b *bytes.Buffer) { writeDashboard(b, posts, message, csrfToken) })
		},
		AdminForm: func(post localimg.Post, autosave *localimg.Revision, csrfToken string) templ.Component {
			return page(siteName, "Edit "+post.Title, func(b *bytes.Buffer) { writePostForm(b, post, autosave, csrfToken) })
		},
		AdminImages: func(images []localimg.Image, csrfToken string) templ.Component {
			return page(siteName, "Images", func(b *bytes.Buffer) { writeImages(b, images, csrfToken) })
		},
		AdminImporter: func(p localimg.ImporterPage) templ.Component {
			return page(siteName, "External Image Importer", func(b *bytes.Buffer) { writeImporter(b, p) })
		},
		NotFound: func() templ.Component {
			return page(siteName, "Not found", func(b *bytes.Buffer) { b.WriteString("<h1>Page not found</h1>") })
		},
		ServerError: func() templ.Component {
			return page(siteName, "Error", func(b *bytes.Buffer) { b.WriteString("<h1>Something went wrong</h1>") })
		},
	}
}

// page wraps body in the admin layout. Everything body writes that did not
// come from text, attr or href must be static markup.
func page(siteName, title string, body func(*bytes.Buffer)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b bytes.Buffer
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>`)
		b.WriteString(text(title + " | " + siteName))
		b.WriteString(`</title></head><body>`)
		b.WriteString(`<nav><a href="/admin/">Posts</a> <a href="/admin/images/">Images</a> <a href="/admin/importer/">Importer</a></nav><main>`)
		body(&b)
		b.WriteString(`</main></body></html>`)
		_, err := w.Write(b.Bytes())
		return err
	})
}

// text escapes s for use as element content.
func text(s string) string {
	return templ.EscapeString(s)
}

// attr renders ` name="value"` with value escaped.
func attr(name, value string) string {
	return " " + name + `="` + templ.EscapeString(value) + `"`
}

// href is attr("href", u) after templ's URL sanitizing.
func href(u string) string {
	return attr("href", string(templ.URL(u)))
}

func flag(name string, on bool) string {
	if on {
		return " " + name
	}
	return ""
}

func csrfField(b *bytes.Buffer, token string) {
	b.WriteString(`<input type="hidden" name="_csrf"` + attr("value", token) + `>`)
}

func deleteForm(b *bytes.Buffer, action, csrfToken string) {
	b.WriteString(`<form method="post"` + attr("action", action) + `><input type="hidden" name="_method" value="DELETE">`)
	csrfField(b, csrfToken)
	b.WriteString(`<button type="submit">Delete</button></form>`)
}

func writeLogin(b *bytes.Buffer, showError bool, csrfToken string) {
	b.WriteString(`<h1>Admin login</h1>`)
	if showError {
		b.WriteString(`<p class="error">Wrong password.</p>`)
	}
	b.WriteString(`<form method="post" action="/admin/login/">`)
	csrfField(b, csrfToken)
	b.WriteString(`<input type="password" name="password" autofocus><button type="submit">Log in</button></form>`)
}

func writeDashboard(b *bytes.Buffer, posts []localimg.Post, message string, csrfToken string) {
	b.WriteString(`<h1>Posts</h1>`)
	if message != "" {
		b.WriteString(`<p class="message">` + text(message) + `</p>`)
	}
	b.WriteString(`<form method="post" action="/admin/logout/">`)
	csrfField(b, csrfToken)
	b.WriteString(`<button type="submit">Log out</button></form><table><tr><th>Title</th><th>Type</th><th>Date</th><th>Status</th></tr>`)
	for _, p := range posts {
		status := "draft"
		if p.Published {
			status = "published"
		}
		postPath := "/admin/post/" + url.PathEscape(p.Slug) + "/"
		b.WriteString(`<tr><td><a` + href(postPath) + `>` + text(p.Title) + `</a></td>`)
		b.WriteString(`<td>` + text(p.Type) + `</td><td>` + text(p.Date) + `</td><td>` + status + `</td><td>`)
		deleteForm(b, postPath, csrfToken)
		b.WriteString(`</td></tr>`)
	}
	b.WriteString(`</table><section id="editor"><h2>New post</h2>`)
	writePostForm(b, localimg.Post{Type: localimg.TypePost, Published: true}, nil, csrfToken)
	b.WriteString(`</section>`)
}

func writePostForm(b *bytes.Buffer, post localimg.Post, autosave *localimg.Revision, csrfToken string) {
	if autosave != nil && autosave.Content != post.Content {
		b.WriteString(`<p class="notice">An autosave from ` + text(autosave.SavedAt) + ` differs from the saved content.</p>`)
	}
	b.WriteString(`<form method="post" action="/admin/save/">`)
	csrfField(b, csrfToken)
	b.WriteString(`<label>Title <input name="title"` + attr("value", post.Title) + `></label>`)
	b.WriteString(`<label>Slug <input name="slug"` + attr("value", post.Slug) + `></label>`)
	b.WriteString(`<label>Date <input name="date"` + attr("value", post.Date) + ` placeholder="YYYY-MM-DD"></label>`)
	b.WriteString(`<label>Type <select name="type">`)
	for _, t := range localimg.PostTypes {
		b.WriteString(`<option` + attr("value", t) + flag("selected", t == post.Type) + `>` + text(t) + `</option>`)
	}
	b.WriteString(`</select></label>`)
	b.WriteString(`<label>Tags <input name="tags"` + attr("value", localimg.JoinTags(post.Tags)) + `></label>`)
	b.WriteString(`<label>Summary <input name="summary"` + attr("value", post.Summary) + `></label>`)
	b.WriteString(`<label>Content <textarea name="content" rows="20">` + text(post.Content) + `</textarea></label>`)
	b.WriteString(`<label><input type="checkbox" name="published" value="1"` + flag("checked", post.Published) + `> Published</label>`)
	b.WriteString(`<button type="submit">Save</button> <button type="submit" formaction="/admin/autosave/">Save draft copy</button></form>`)
}

func writeImages(b *bytes.Buffer, images []localimg.Image, csrfToken string) {
	b.WriteString(`<h1>Images</h1><form method="post" action="/admin/images/upload/" enctype="multipart/form-data">`)
	csrfField(b, csrfToken)
	b.WriteString(`<input type="file" name="image" accept="image/*"><button type="submit">Upload</button></form><ul id="images">`)
	for _, img := range images {
		b.WriteString(`<li><a` + href(img.URL) + `>` + text(img.Filename) + `</a> `)
		b.WriteString(strconv.Itoa(img.Width) + `&times;` + strconv.Itoa(img.Height) + `, ` + humanize.Bytes(uint64(img.Size)))
		if img.Owner != "" {
			b.WriteString(`, imported for <code>` + text(img.Owner) + `</code>`)
		}
		if len(img.Variants) > 0 {
			b.WriteString(`, ` + strconv.Itoa(len(img.Variants)) + ` sizes`)
		}
		b.WriteString(` `)
		deleteForm(b, "/admin/images/"+strconv.FormatInt(img.ID, 10)+"/", csrfToken)
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)
}

func writeImporter(b *bytes.Buffer, p localimg.ImporterPage) {
	b.WriteString(`<h1>External Image Importer Settings</h1>`)
	if p.Notice != "" {
		b.WriteString(`<div class="notice notice-success is-dismissible"><p>` + text(p.Notice) + `</p>`)
		b.WriteString(`<button type="button" onclick="this.parentElement.remove()">Dismiss</button></div>`)
	}
	if p.Message == "saved" {
		b.WriteString(`<p class="message">Settings saved.</p>`)
	}

	b.WriteString(`<form method="post" action="/admin/importer/">`)
	csrfField(b, p.CSRFToken)
	b.WriteString(`<fieldset><legend>Enable Import</legend><label><input type="checkbox" name="enabled" value="1"` + flag("checked", p.Settings.Enabled) + `> `)
	b.WriteString(`Enable automatic external image import on post save</label></fieldset>`)
	b.WriteString(`<fieldset><legend>Allowed Post Types</legend>`)
	for _, t := range p.PostTypes {
		b.WriteString(`<label><input type="checkbox" name="post_types"` + attr("value", t) + flag("checked", slices.Contains(p.Settings.PostTypes, t)) + `> ` + text(t) + `</label><br>`)
	}
	b.WriteString(`</fieldset><fieldset><legend>Domain Allowlist</legend>`)
	b.WriteString(`<input type="text" name="domain_allowlist"` + attr("value", p.Settings.DomainAllowlist) + `>`)
	b.WriteString(`<p class="description">Comma-separated list of allowed external domains. Leave empty to allow all domains.</p></fieldset>`)
	b.WriteString(`<button type="submit">Save Changes</button></form>`)

	b.WriteString(`<form method="post" action="/admin/importer/run/">`)
	csrfField(b, p.CSRFToken)
	b.WriteString(`<button type="submit">Import External Images Now</button></form>`)
}
