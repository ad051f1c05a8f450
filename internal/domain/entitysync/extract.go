package entitysync

import (
	"fmt"
	"strings"
)

// Extract lists the people referenced by a mirrored matter: the account
// (client), its contacts and the assigned staff users. Entries sharing a
// PracticePanther id or email are reported once.
func Extract(data map[string]any) []Candidate {
	var out []Candidate
	seen := map[string]struct{}{}
	add := func(c Candidate) {
		for _, key := range []string{"id:" + c.PPID, "email:" + c.Email} {
			if key == "id:" || key == "email:" {
				continue
			}
			if _, ok := seen[key]; ok {
				return
			}
		}
		if c.PPID != "" {
			seen["id:"+c.PPID] = struct{}{}
		}
		if c.Email != "" {
			seen["email:"+c.Email] = struct{}{}
		}
		out = append(out, c)
	}

	if account, ok := data[SourceAccount].(map[string]any); ok {
		add(candidate(SourceAccount, account))
		if nested, ok := account["contacts"].([]any); ok {
			for _, item := range nested {
				if m, ok := item.(map[string]any); ok {
					add(candidate(SourceContacts, m))
				}
			}
		}
	}
	for _, source := range []string{SourceContacts, SourceUsers} {
		items, _ := data[source].([]any)
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				add(candidate(source, m))
			}
		}
	}
	return out
}

func candidate(source string, m map[string]any) Candidate {
	c := Candidate{
		Source:    source,
		PPID:      str(m, "id"),
		Email:     strings.ToLower(str(m, "email", "email_address", "primary_email_address")),
		FirstName: str(m, "first_name"),
		LastName:  str(m, "last_name"),
		Phone:     str(m, "phone", "phone_mobile", "phone_work", "phone_home"),
		Company:   str(m, "company_name", "company"),
		Raw:       m,
	}
	if c.FirstName == "" && c.LastName == "" {
		name := str(m, "display_name", "name")
		if fields := strings.Fields(name); len(fields) > 0 {
			c.FirstName = fields[0]
			c.LastName = strings.Join(fields[1:], " ")
		}
	}
	return c
}

// str returns the first non-empty value among keys. Numeric ids are
// formatted without a fractional part.
func str(m map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := m[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case int:
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}
