// Package script runs YAML browser scripts against a souper Bridge. A script
// is an ordered list of steps; elements found by one step are named and acted
// on by later ones.
//
//	name: search
//	steps:
//	  - goto: https://www.zillow.com/homes/
//	  - pause: {message: solve the captcha, if_present: {id: px-captcha}}
//	  - expect_absent: {id: px-captcha}
//	  - find: {css: "input[type=text]", as: box}
//	  - send_keys: {into: box, text: "Seattle, WA"}
//	  - submit: box
//	  - find: {text: For rent, as: rent}
//	  - click: rent
package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Script is a named sequence of steps.
type Script struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step holds exactly one action.
type Step struct {
	Goto         string     `yaml:"goto,omitempty"`
	Find         *Selector  `yaml:"find,omitempty"`
	SendKeys     *KeysInput `yaml:"send_keys,omitempty"`
	Submit       string     `yaml:"submit,omitempty"`
	Click        string     `yaml:"click,omitempty"`
	Pause        *Pause     `yaml:"pause,omitempty"`
	Screenshot   string     `yaml:"screenshot,omitempty"`
	ExpectAbsent *Selector  `yaml:"expect_absent,omitempty"`
}

// Selector names one query. Exactly one of CSS, ID, Text or PartialText is set.
type Selector struct {
	CSS         string `yaml:"css,omitempty"`
	ID          string `yaml:"id,omitempty"`
	Text        string `yaml:"text,omitempty"`
	PartialText string `yaml:"partial_text,omitempty"`

	// As names the first match for later steps. Defaults to LastFound.
	As string `yaml:"as,omitempty"`
	// Optional makes an empty result a no-op instead of a failure.
	Optional bool `yaml:"optional,omitempty"`
}

// Pause waits for a human. It is written either as the bare message or as a
// mapping; with IfPresent set the pause only happens when that selector
// matches, so a script can stop for a bot check that only sometimes appears.
type Pause struct {
	Message   string    `yaml:"message"`
	IfPresent *Selector `yaml:"if_present,omitempty"`
}

// UnmarshalYAML accepts "pause: text" and "pause: {message, if_present}".
func (p *Pause) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		p.Message = value.Value
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(value.Content); i += 2 {
			switch key := value.Content[i].Value; key {
			case "message", "if_present":
			default:
				return fmt.Errorf("line %d: field %s not found in pause", value.Content[i].Line, key)
			}
		}
		type plain Pause
		return value.Decode((*plain)(p))
	default:
		return fmt.Errorf("line %d: pause must be a message or a mapping", value.Line)
	}
}

// KeysInput types Text into the element named Into.
type KeysInput struct {
	Into string `yaml:"into"`
	Text string `yaml:"text"`
}

// LastFound is the name given to a find result without an explicit "as", and
// the element used by actions that name none.
const LastFound = "_"

// Action names a step's kind.
type Action string

const (
	ActionGoto         Action = "goto"
	ActionFind         Action = "find"
	ActionSendKeys     Action = "send_keys"
	ActionSubmit       Action = "submit"
	ActionClick        Action = "click"
	ActionPause        Action = "pause"
	ActionScreenshot   Action = "screenshot"
	ActionExpectAbsent Action = "expect_absent"
)

// ErrInvalidScript marks a script that cannot be run as written.
var ErrInvalidScript = errors.New("invalid script")

// Action reports which action s holds, failing when it holds none or several.
func (s Step) Action() (Action, error) {
	var set []Action
	if s.Goto != "" {
		set = append(set, ActionGoto)
	}
	if s.Find != nil {
		set = append(set, ActionFind)
	}
	if s.SendKeys != nil {
		set = append(set, ActionSendKeys)
	}
	if s.Submit != "" {
		set = append(set, ActionSubmit)
	}
	if s.Click != "" {
		set = append(set, ActionClick)
	}
	if s.Pause != nil {
		set = append(set, ActionPause)
	}
	if s.Screenshot != "" {
		set = append(set, ActionScreenshot)
	}
	if s.ExpectAbsent != nil {
		set = append(set, ActionExpectAbsent)
	}
	switch len(set) {
	case 0:
		return "", fmt.Errorf("%w: step has no action", ErrInvalidScript)
	case 1:
		return set[0], nil
	default:
		return "", fmt.Errorf("%w: step has several actions %v", ErrInvalidScript, set)
	}
}

func (sel *Selector) validate() error {
	n := 0
	for _, v := range []string{sel.CSS, sel.ID, sel.Text, sel.PartialText} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%w: selector needs exactly one of css, id, text, partial_text", ErrInvalidScript)
	}
	return nil
}

func (sel *Selector) String() string {
	switch {
	case sel.CSS != "":
		return fmt.Sprintf("css=%q", sel.CSS)
	case sel.ID != "":
		return fmt.Sprintf("id=%q", sel.ID)
	case sel.Text != "":
		return fmt.Sprintf("text=%q", sel.Text)
	default:
		return fmt.Sprintf("partial_text=%q", sel.PartialText)
	}
}

// Validate checks every step without running anything.
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScript)
	}
	for i, step := range s.Steps {
		action, err := step.Action()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		switch action {
		case ActionFind:
			err = step.Find.validate()
		case ActionExpectAbsent:
			err = step.ExpectAbsent.validate()
		case ActionSendKeys:
			if step.SendKeys.Text == "" {
				err = fmt.Errorf("%w: send_keys needs text", ErrInvalidScript)
			}
		case ActionPause:
			if step.Pause.Message == "" {
				err = fmt.Errorf("%w: pause needs a message", ErrInvalidScript)
			} else if step.Pause.IfPresent != nil {
				err = step.Pause.IfPresent.validate()
			}
		}
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, action, err)
		}
	}
	return nil
}

// Parse decodes and validates a script. Unknown keys are rejected.
func Parse(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidScript)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
