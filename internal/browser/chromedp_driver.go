package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/schoolbot/lockbox/internal/model"
)

// Selectors for the portal login flow and form page markers. These are
// placeholders for the real portal/form DOM, which a deployment's
// configuration supplies in practice.
const (
	selIdentityField  = `#identity-field`
	selPortalLogin    = `#portal-login`
	selPortalPassword = `#portal-password`
	selPortalSubmit   = `#portal-submit`
	selSubmitButton   = `button[type=submit]`
	selQuestionRoot   = `.question`
	selQuestionTitle  = `.question-title`
	selEmailDisplay   = `.signed-in-as-email`
	responseMarker    = "/response"
)

// ChromedpDriver is the production browser.Driver, wrapping a headless
// Chrome instance driven by chromedp, kept behind the narrow Driver
// interface above.
type ChromedpDriver struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewChromedpDriver launches a fresh headless Chrome tab.
func NewChromedpDriver(ctx context.Context) (*ChromedpDriver, error) {
	allocCtx, _ := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	taskCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(taskCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: launch chrome: %w", err)
	}
	return &ChromedpDriver{ctx: taskCtx, cancel: cancel}, nil
}

func (d *ChromedpDriver) Open(ctx context.Context, url string) error {
	if err := chromedp.Run(d.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("browser: open %s: %w", url, err)
	}
	return nil
}

func (d *ChromedpDriver) PerformPortalSSO(ctx context.Context, login, password string) error {
	waitCtx, cancel := context.WithTimeout(d.ctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selIdentityField, chromedp.ByQuery)); err != nil {
		return ErrAuthChallengeInvalid
	}

	err := chromedp.Run(d.ctx,
		chromedp.SendKeys(selIdentityField, login, chromedp.ByQuery),
		chromedp.Click(selPortalSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selPortalPassword, chromedp.ByQuery),
		chromedp.SendKeys(selPortalLogin, login, chromedp.ByQuery),
		chromedp.SendKeys(selPortalPassword, password, chromedp.ByQuery),
		chromedp.Click(selPortalSubmit, chromedp.ByQuery),
	)
	if err != nil {
		return ErrCredentialsInvalid
	}
	return nil
}

func (d *ChromedpDriver) WaitForSubmitButton(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(d.ctx, 15*time.Second)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selSubmitButton, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: submit button never appeared", ErrFormInvalid)
	}
	return nil
}

func (d *ChromedpDriver) Geometry(ctx context.Context) ([]model.Question, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(d.ctx, chromedp.Nodes(selQuestionRoot, &nodes, chromedp.ByQueryAll)); err != nil {
		return nil, fmt.Errorf("%w: list questions: %w", ErrFormInvalid, err)
	}

	questions := make([]model.Question, 0, len(nodes))
	for i, n := range nodes {
		var title string
		titleSel := fmt.Sprintf(`.question:nth-of-type(%d) %s`, i+1, selQuestionTitle)
		if err := chromedp.Run(d.ctx, chromedp.Text(titleSel, &title, chromedp.ByQuery)); err != nil || title == "" {
			return nil, fmt.Errorf("%w: question %d missing title", ErrFormInvalid, i)
		}
		questions = append(questions, model.Question{
			Index: i,
			Title: title,
			Kind:  classifyNode(n),
		})
	}
	return questions, nil
}

// classifyNode maps a question container's marker elements to a
// model.QuestionKind by inspecting child node tags/attributes.
func classifyNode(n *cdp.Node) model.QuestionKind {
	for _, child := range n.Children {
		switch {
		case child.NodeName == "INPUT" && attrEquals(child, "type", "radio"):
			return model.QuestionMultipleChoice
		case child.NodeName == "INPUT" && attrEquals(child, "type", "checkbox"):
			return model.QuestionCheckbox
		case child.NodeName == "TEXTAREA":
			return model.QuestionLongText
		case child.NodeName == "SELECT":
			return model.QuestionDropdown
		case child.NodeName == "INPUT" && hasMinMax(child):
			return model.QuestionDate
		case child.NodeName == "INPUT":
			return model.QuestionText
		}
	}
	return model.QuestionSkipped
}

func attrEquals(n *cdp.Node, name, value string) bool {
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if n.Attributes[i] == name && n.Attributes[i+1] == value {
			return true
		}
	}
	return false
}

func hasMinMax(n *cdp.Node) bool {
	for i := 0; i+1 < len(n.Attributes); i += 2 {
		if n.Attributes[i] == "max" {
			if v, err := strconv.Atoi(n.Attributes[i+1]); err == nil && (v == 12 || v == 31) {
				return true
			}
		}
	}
	return false
}

func (d *ChromedpDriver) RedactEmail(ctx context.Context) error {
	return chromedp.Run(d.ctx, chromedp.SetJavascriptAttribute(selEmailDisplay, "textContent", "", chromedp.ByQuery))
}

func (d *ChromedpDriver) FillText(ctx context.Context, index int, value string) error {
	sel := questionFieldSelector(index)
	if err := chromedp.Run(d.ctx, chromedp.SendKeys(sel, value, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: fill text field %d: %w", ErrFormInvalid, index, err)
	}
	return nil
}

func (d *ChromedpDriver) FillDate(ctx context.Context, index int, value time.Time) error {
	base := questionFieldSelector(index)
	err := chromedp.Run(d.ctx,
		chromedp.SendKeys(base+` input[max="12"]`, strconv.Itoa(int(value.Month())), chromedp.ByQuery),
		chromedp.SendKeys(base+` input[max="31"]`, strconv.Itoa(value.Day()), chromedp.ByQuery),
		chromedp.SendKeys(base+` input[min="1000"]`, strconv.Itoa(value.Year()), chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: fill date field %d: %w", ErrFormInvalid, index, err)
	}
	return nil
}

func (d *ChromedpDriver) SelectChoice(ctx context.Context, index, optionIndex int) error {
	sel := fmt.Sprintf(`%s .option:nth-of-type(%d)`, questionFieldSelector(index), optionIndex+1)
	if err := chromedp.Run(d.ctx, chromedp.Click(sel, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: select choice field %d option %d: %w", ErrFormInvalid, index, optionIndex, err)
	}
	return nil
}

func (d *ChromedpDriver) SelectDropdown(ctx context.Context, index, optionIndex int) error {
	opener := fmt.Sprintf(`%s .dropdown-opener`, questionFieldSelector(index))
	popupOption := fmt.Sprintf(`%s .dropdown-popup .option:nth-of-type(%d)`, questionFieldSelector(index), optionIndex+2) // +1 index, +1 to skip "Choose"

	if err := chromedp.Run(d.ctx, chromedp.Click(opener, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: open dropdown field %d: %w", ErrFormInvalid, index, err)
	}

	waitCtx, cancel := context.WithTimeout(d.ctx, 4*time.Second)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(popupOption, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: dropdown popup field %d: %w", ErrFormInvalid, index, err)
	}

	if err := chromedp.Run(d.ctx, chromedp.Click(popupOption, chromedp.ByQuery), chromedp.KeyEvent("\x1b")); err != nil {
		return fmt.Errorf("%w: select dropdown field %d option %d: %w", ErrFormInvalid, index, optionIndex, err)
	}

	// A slow-to-close popup isn't worth failing the whole fill over.
	closeCtx, closeCancel := context.WithTimeout(d.ctx, 2*time.Second)
	defer closeCancel()
	_ = chromedp.Run(closeCtx, chromedp.WaitNotVisible(popupOption, chromedp.ByQuery))

	return nil
}

func (d *ChromedpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(d.ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return buf, nil
}

func (d *ChromedpDriver) Submit(ctx context.Context) error {
	if err := chromedp.Run(d.ctx, chromedp.Click(selSubmitButton, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: click submit: %w", err)
	}
	return nil
}

func (d *ChromedpDriver) WaitForResponseMarker(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var url string
		if err := chromedp.Run(d.ctx, chromedp.Location(&url)); err == nil && containsMarker(url) {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return ErrResponseTimeout
}

func containsMarker(url string) bool {
	for i := 0; i+len(responseMarker) <= len(url); i++ {
		if url[i:i+len(responseMarker)] == responseMarker {
			return true
		}
	}
	return false
}

func questionFieldSelector(index int) string {
	return fmt.Sprintf(`%s:nth-of-type(%d)`, selQuestionRoot, index+1)
}

func (d *ChromedpDriver) Close(ctx context.Context) error {
	d.cancel()
	return nil
}

var _ Driver = (*ChromedpDriver)(nil)
