package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fatih/color"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	idColor     = color.New(color.FgYellow)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgRed)
)

type client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newClient(baseURL, apiKey string) *client {
	return &client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *client) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type mappingDoc struct {
	ID          string       `json:"id"`
	Users       []string     `json:"users"`
	ApplyToRole bool         `json:"apply_to_role"`
	Roles       []string     `json:"roles,omitempty"`
	Rows        []mappingRow `json:"rows"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type mappingRow struct {
	Allow              string `json:"allow"`
	ForValue           string `json:"for_value"`
	ApplyToAllDoctypes bool   `json:"apply_to_all_doctypes"`
	ApplicableFor      string `json:"applicable_for,omitempty"`
	IsDefault          bool   `json:"is_default"`
	HideDescendants    bool   `json:"hide_descendants"`
}

type applyResult struct {
	AppliedCount int      `json:"applied_count"`
	Errors       []string `json:"errors"`
}

func (c *client) listMappings() error {
	var docs []mappingDoc
	if err := c.do(http.MethodGet, "/api/mappings", nil, &docs); err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no mappings")
		return nil
	}
	headerColor.Printf("%-28s %-6s %-6s %s\n", "ID", "USERS", "ROWS", "UPDATED")
	for _, d := range docs {
		fmt.Printf("%-28s %-6d %-6d %s\n",
			idColor.Sprint(d.ID), len(d.Users), len(d.Rows), d.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func (c *client) showMapping(id string) error {
	var doc mappingDoc
	if err := c.do(http.MethodGet, "/api/mappings/"+url.PathEscape(id), nil, &doc); err != nil {
		return err
	}
	headerColor.Println("Mapping " + doc.ID)
	if doc.ApplyToRole {
		fmt.Printf("  roles: %v\n", doc.Roles)
	}
	fmt.Printf("  users: %v\n", doc.Users)
	headerColor.Println("Rows")
	for _, row := range doc.Rows {
		scope := "all doctypes"
		if !row.ApplyToAllDoctypes {
			scope = "only " + row.ApplicableFor
		}
		flags := ""
		if row.IsDefault {
			flags += " [default]"
		}
		if row.HideDescendants {
			flags += " [hide descendants]"
		}
		fmt.Printf("  %s / %s (%s)%s\n", row.Allow, row.ForValue, scope, flags)
	}
	return nil
}

func (c *client) applyMapping(id string) error {
	var result applyResult
	if err := c.do(http.MethodPost, "/api/mappings/"+url.PathEscape(id)+"/apply", nil, &result); err != nil {
		return err
	}
	printApplyResult(&result)
	return nil
}

func printApplyResult(result *applyResult) {
	okColor.Printf("applied %d user permission(s)\n", result.AppliedCount)
	for _, e := range result.Errors {
		warnColor.Println("failed: " + e)
	}
}

func (c *client) deleteMapping(id string) error {
	if err := c.do(http.MethodDelete, "/api/mappings/"+url.PathEscape(id), nil, nil); err != nil {
		return err
	}
	okColor.Println("deleted " + id)
	return nil
}

type grantRow struct {
	User               string `json:"user"`
	Allow              string `json:"allow"`
	ForValue           string `json:"for_value"`
	ApplyToAllDoctypes bool   `json:"apply_to_all_doctypes"`
	ApplicableFor      string `json:"applicable_for,omitempty"`
	IsDefault          bool   `json:"is_default"`
	OwnerDocument      string `json:"owner_document,omitempty"`
}

func (c *client) listGrants(user string) error {
	var grants []grantRow
	path := "/api/grants?user=" + url.QueryEscape(user)
	if err := c.do(http.MethodGet, path, nil, &grants); err != nil {
		return err
	}
	if len(grants) == 0 {
		fmt.Printf("no grants for %s\n", user)
		return nil
	}
	headerColor.Printf("%-20s %-24s %-16s %-10s %s\n", "ALLOW", "FOR VALUE", "APPLICABLE FOR", "DEFAULT", "OWNER")
	for _, g := range grants {
		applicable := "*"
		if !g.ApplyToAllDoctypes {
			applicable = g.ApplicableFor
		}
		fmt.Printf("%-20s %-24s %-16s %-10s %s\n",
			g.Allow, g.ForValue, applicable, strconv.FormatBool(g.IsDefault), idColor.Sprint(g.OwnerDocument))
	}
	return nil
}

type userMatch struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

func (c *client) searchUsers(txt string, roles []string, start, limit int) error {
	q := url.Values{}
	q.Set("txt", txt)
	for _, role := range roles {
		q.Add("roles", role)
	}
	q.Set("start", strconv.Itoa(start))
	q.Set("page_len", strconv.Itoa(limit))

	var matches []userMatch
	if err := c.do(http.MethodGet, "/api/users/search?"+q.Encode(), nil, &matches); err != nil {
		return err
	}
	for _, m := range matches {
		fmt.Printf("%s\t%s\n", idColor.Sprint(m.ID), m.FullName)
	}
	return nil
}

type systemSettings struct {
	ApplyStrictUserPermissions bool `json:"apply_strict_user_permissions"`
}

func (c *client) showSettings() error {
	var s systemSettings
	if err := c.do(http.MethodGet, "/api/settings", nil, &s); err != nil {
		return err
	}
	fmt.Printf("apply_strict_user_permissions: %v\n", s.ApplyStrictUserPermissions)
	return nil
}

func (c *client) setStrict(enabled bool) error {
	s := systemSettings{ApplyStrictUserPermissions: enabled}
	if err := c.do(http.MethodPut, "/api/settings", &s, &s); err != nil {
		return err
	}
	okColor.Printf("apply_strict_user_permissions set to %v\n", s.ApplyStrictUserPermissions)
	return nil
}
