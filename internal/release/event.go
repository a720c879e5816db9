// SPDX-License-Identifier: MIT

package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Event is the release context handed over by the CI platform.
type Event struct {
	Repository string
	Tag        string
	Token      string
}

type eventPayload struct {
	Release *struct {
		TagName string `json:"tag_name"`
	} `json:"release"`
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// EventFromEnv reads GITHUB_REPOSITORY, GITHUB_REF_NAME (or GITHUB_REF),
// GITHUB_TOKEN and the payload at GITHUB_EVENT_PATH. The payload's
// release.tag_name wins over the ref name.
func EventFromEnv() (Event, error) {
	ev := Event{
		Repository: os.Getenv("GITHUB_REPOSITORY"),
		Tag:        os.Getenv("GITHUB_REF_NAME"),
		Token:      os.Getenv("GITHUB_TOKEN"),
	}
	if ev.Tag == "" {
		ev.Tag = strings.TrimPrefix(os.Getenv("GITHUB_REF"), "refs/tags/")
	}

	path := os.Getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return ev, nil
	}
	raw, err := os.ReadFile(path) //nolint:gosec // path is set by the CI runner
	if err != nil {
		return ev, fmt.Errorf("read event payload: %w", err)
	}
	var payload eventPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ev, fmt.Errorf("decode event payload: %w", err)
	}
	if payload.Release != nil && payload.Release.TagName != "" {
		ev.Tag = payload.Release.TagName
	}
	if ev.Repository == "" && payload.Repository != nil {
		ev.Repository = payload.Repository.FullName
	}
	return ev, nil
}

// Merge overlays the non-empty fields of o.
func (e Event) Merge(o Event) Event {
	if o.Repository != "" {
		e.Repository = o.Repository
	}
	if o.Tag != "" {
		e.Tag = o.Tag
	}
	if o.Token != "" {
		e.Token = o.Token
	}
	return e
}

// Validate reports the first missing field.
func (e Event) Validate() error {
	switch {
	case e.Repository == "":
		return errors.New("release: repository is not set (GITHUB_REPOSITORY or --repo)")
	case e.Tag == "":
		return errors.New("release: tag is not set (GITHUB_REF_NAME, event payload or --tag)")
	case e.Token == "":
		return errors.New("release: token is not set (GITHUB_TOKEN)")
	}
	return nil
}
