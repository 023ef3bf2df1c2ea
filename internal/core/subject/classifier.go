// Package subject assigns a coarse subject label from keyword substrings.
package subject

import (
	"strings"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type rule struct {
	subject  domain.Subject
	keywords []string
}

// Classifier is pure and safe for concurrent use.
type Classifier struct {
	rules    []rule
	fallback domain.Subject
}

// NewClassifier keeps rule order. Rules for the fallback subject are dropped:
// the fallback is what "no match" means, never a match of its own.
func NewClassifier(rules []domain.SubjectRule, fallback domain.Subject) *Classifier {
	if fallback == "" {
		fallback = domain.SubjectGeneral
	}
	c := &Classifier{fallback: fallback}
	for _, r := range rules {
		if r.Subject == "" || r.Subject == fallback {
			continue
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) > 0 {
			c.rules = append(c.rules, rule{subject: r.Subject, keywords: keywords})
		}
	}
	return c
}

func (c *Classifier) Fallback() domain.Subject {
	return c.fallback
}

func (c *Classifier) Classify(fileName, contextText string) domain.Subject {
	s, _ := c.Match(fileName, contextText)
	return s
}

// Match tries the file name first and the context only when the name has no
// subject keyword.
func (c *Classifier) Match(fileName, contextText string) (domain.Subject, domain.MatchSource) {
	if s, ok := c.find(fileName); ok {
		return s, domain.MatchFilename
	}
	if s, ok := c.find(contextText); ok {
		return s, domain.MatchContext
	}
	return c.fallback, domain.MatchNone
}

func (c *Classifier) find(text string) (domain.Subject, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.subject, true
			}
		}
	}
	return "", false
}
