// Package normalizer cleans raw message bodies before classification. It is
// an ordered pipeline of independent transforms; order matters, truncation
// must run last.
package normalizer

import (
	"regexp"
	"strings"

	"github.com/inboxwrap/inboxwrap-backend/internal/models"
	"github.com/jaytaylor/html2text"
)

// MaxBodyLength is the hard cap applied to normalized bodies.
const MaxBodyLength = 1000

// Transform rewrites a batch of mails. Implementations only touch the Body
// field and must be idempotent: applying a transform to already-transformed
// text produces no further change.
type Transform interface {
	Apply(mails []models.Mail) []models.Mail
}

// Pipeline applies its transforms in registration order.
type Pipeline struct {
	transforms []Transform
}

// NewPipeline creates a pipeline with the given transforms.
func NewPipeline(transforms ...Transform) *Pipeline {
	return &Pipeline{transforms: transforms}
}

// Default returns the standard mail normalization pipeline.
func Default() *Pipeline {
	return NewPipeline(
		StripMarkup{},
		CollapseWhitespace{},
		TruncateBody{Limit: MaxBodyLength},
	)
}

// Run applies every transform, in order, to the batch.
func (p *Pipeline) Run(mails []models.Mail) []models.Mail {
	for _, t := range p.transforms {
		mails = t.Apply(mails)
	}
	return mails
}

// StripMarkup removes HTML, decodes entities and keeps only visible text.
type StripMarkup struct{}

// Apply implements Transform
func (StripMarkup) Apply(mails []models.Mail) []models.Mail {
	for i := range mails {
		text, err := html2text.FromString(mails[i].Body, html2text.Options{TextOnly: true})
		if err != nil {
			// Unparseable markup: keep the raw body, later stages still run.
			continue
		}
		mails[i].Body = text
	}
	return mails
}

var (
	// Invisible and control characters that leak out of HTML email bodies.
	invisibleChars = regexp.MustCompile(`[\x{0000}-\x{001F}\x{007F}-\x{009F}\x{00AD}\x{034F}\x{061C}\x{115F}\x{1160}\x{17B4}\x{17B5}\x{180B}-\x{180D}\x{200B}-\x{200F}\x{202A}-\x{202E}\x{2060}-\x{206F}\x{FEFF}]`)

	// Markup removal tends to glue adjacent runs together ("Due1 May",
	// "pay$30"); reinsert a separating space at those boundaries.
	letterThenDigit = regexp.MustCompile(`([A-Za-z])(\d)`)
	digitThenLetter = regexp.MustCompile(`(\d)([A-Za-z])`)
	letterThenMoney = regexp.MustCompile("([A-Za-z])([$€£¥])")

	repeatedSpace = regexp.MustCompile(`[\x{00A0}\s]{2,}`)
)

// CollapseWhitespace strips invisible characters, restores run-on spacing
// and collapses whitespace runs.
type CollapseWhitespace struct{}

// Apply implements Transform
func (CollapseWhitespace) Apply(mails []models.Mail) []models.Mail {
	for i := range mails {
		body := mails[i].Body
		if strings.TrimSpace(body) == "" {
			continue
		}

		body = invisibleChars.ReplaceAllString(body, " ")
		body = letterThenDigit.ReplaceAllString(body, "$1 $2")
		body = digitThenLetter.ReplaceAllString(body, "$1 $2")
		body = letterThenMoney.ReplaceAllString(body, "$1 $2")
		body = repeatedSpace.ReplaceAllString(body, " ")

		mails[i].Body = strings.TrimSpace(body)
	}
	return mails
}

// TruncateBody hard-caps body length. It must be the last stage: transforms
// running after it could push the body over the limit again.
type TruncateBody struct {
	Limit int
}

// Apply implements Transform
func (t TruncateBody) Apply(mails []models.Mail) []models.Mail {
	for i := range mails {
		runes := []rune(mails[i].Body)
		if len(runes) > t.Limit {
			mails[i].Body = string(runes[:t.Limit])
		}
	}
	return mails
}
