package webui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"

	"otterdog/pkg/credentials"
)

const baseURL = "https://github.com"

// ClientOptions configures the browser client.
type ClientOptions struct {
	// ProfileDir is the persistent browser profile that keeps the GitHub
	// session alive across runs.
	ProfileDir string
	// Headless hides the browser window. Interactive login needs it off.
	Headless bool
	// Timeout bounds individual page operations.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client drives the GitHub web interface through a Chromium instance.
type Client struct {
	browser   *rod.Browser
	selectors SelectorMap
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewClient launches a browser and connects to it. The caller owns the
// client and must Close it.
func NewClient(selectors SelectorMap, opts ClientOptions) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Client{
		browser:   browser,
		selectors: selectors,
		timeout:   opts.Timeout,
		logger:    opts.Logger.With().Str("component", "webui").Logger(),
	}, nil
}

// Close shuts the browser down.
func (c *Client) Close() error {
	return c.browser.Close()
}

// Login ensures the browser session is signed in, performing a credential
// login when the persisted profile carries no session yet.
func (c *Client) Login(ctx context.Context, creds *credentials.Credentials) error {
	page, err := c.openPage(ctx, baseURL+"/login")
	if err != nil {
		return err
	}
	defer page.Close()

	user, err := c.loggedInUser(page)
	if err != nil {
		return err
	}
	if user != "" {
		c.logger.Debug().Str("user", user).Msg("re-using persisted browser session")
		return nil
	}

	if creds == nil || !creds.HasWebCredentials() {
		return fmt.Errorf("browser session is not logged in and no web credentials are configured, run 'otterdog web-login' first")
	}

	c.logger.Info().Str("user", creds.Username).Msg("logging in to github.com")
	if err := c.fillInput(page, "#login_field", creds.Username); err != nil {
		return err
	}
	if err := c.fillInput(page, "#password", creds.Password); err != nil {
		return err
	}
	if err := c.click(page, "input[name='commit']"); err != nil {
		return err
	}
	if err := page.WaitLoad(); err != nil {
		return err
	}
	c.waitIdle(page)

	if err := c.completeTwoFactor(page, creds); err != nil {
		return err
	}

	user, err = c.loggedInUser(page)
	if err != nil {
		return err
	}
	if user == "" {
		return fmt.Errorf("login to github.com failed for user '%s'", creds.Username)
	}
	return nil
}

// completeTwoFactor fills the TOTP challenge when GitHub interposes one.
// GitHub submits the form itself once the full code is entered.
func (c *Client) completeTwoFactor(page *rod.Page, creds *credentials.Credentials) error {
	has, el, err := page.Has("#app_totp")
	if err != nil || !has {
		return err
	}
	if creds.TOTPSecret == "" {
		return fmt.Errorf("github.com asks for a two-factor code but no 'totp_secret' is configured")
	}

	code, err := totp.GenerateCode(creds.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate two-factor code: %w", err)
	}
	if err := el.Input(code); err != nil {
		return fmt.Errorf("failed to enter two-factor code: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return err
	}
	c.waitIdle(page)
	return nil
}

// InteractiveLogin opens the GitHub login page and waits until the user has
// completed the login, leaving the session in the profile dir. The client
// must run with a visible browser window for this.
func (c *Client) InteractiveLogin(ctx context.Context) (string, error) {
	page, err := c.openPage(ctx, baseURL+"/login")
	if err != nil {
		return "", err
	}
	defer page.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		// evaluation fails while the user is navigating, keep polling
		if user, err := c.loggedInUser(page); err == nil && user != "" {
			return user, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// ReadSettings reads the given web-only settings from the organization's
// settings pages. Checkboxes yield bools, text and radio inputs yield
// strings.
func (c *Client) ReadSettings(ctx context.Context, org string, names []string) (map[string]any, error) {
	grouped, unmapped := c.selectors.groupByPage(names)
	if len(unmapped) > 0 {
		sort.Strings(unmapped)
		return nil, fmt.Errorf("no selector mapping for settings %v", unmapped)
	}

	values := make(map[string]any)
	for _, pg := range sortedPages(grouped) {
		page, err := c.openPage(ctx, c.pageURL(org, pg))
		if err != nil {
			return nil, err
		}
		for _, name := range grouped[pg] {
			value, err := c.readSetting(page, c.selectors[pg][name])
			if err != nil {
				page.Close()
				return nil, fmt.Errorf("failed to read setting '%s': %w", name, err)
			}
			values[name] = value
		}
		page.Close()
	}
	return values, nil
}

// UpdateSettings writes the given settings grouped per settings page and
// saves each touched form. Values must match the control: bool for
// checkboxes, stringable values for text and radio inputs.
func (c *Client) UpdateSettings(ctx context.Context, org string, settings map[string]any) error {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	grouped, unmapped := c.selectors.groupByPage(names)
	if len(unmapped) > 0 {
		sort.Strings(unmapped)
		return fmt.Errorf("no selector mapping for settings %v", unmapped)
	}

	for _, pg := range sortedPages(grouped) {
		if err := c.updatePage(ctx, org, pg, grouped[pg], settings); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) updatePage(ctx context.Context, org, pg string, names []string, settings map[string]any) error {
	page, err := c.openPage(ctx, c.pageURL(org, pg))
	if err != nil {
		return err
	}
	defer page.Close()

	// settings on the same form share a save control, click each only once
	var saves []string
	seen := make(map[string]bool)
	for _, name := range names {
		d := c.selectors[pg][name]
		changed, err := c.writeSetting(page, d, settings[name])
		if err != nil {
			return fmt.Errorf("failed to write setting '%s': %w", name, err)
		}
		c.logger.Debug().Str("page", pg).Str("setting", name).Bool("changed", changed).Msg("web setting written")
		if changed && !seen[d.Save] {
			seen[d.Save] = true
			saves = append(saves, d.Save)
		}
	}

	for _, save := range saves {
		if err := c.click(page, save); err != nil {
			return fmt.Errorf("failed to save settings on page '%s': %w", pg, err)
		}
		c.waitIdle(page)
	}
	return nil
}

func (c *Client) readSetting(page *rod.Page, d Descriptor) (any, error) {
	switch d.Kind {
	case InputCheckbox:
		el, err := page.Element(d.Selector)
		if err != nil {
			return nil, fmt.Errorf("control '%s' not found: %w", d.Selector, err)
		}
		value, err := el.Property(d.Attribute)
		if err != nil {
			return nil, err
		}
		return value.Bool(), nil

	case InputText:
		el, err := page.Element(d.Selector)
		if err != nil {
			return nil, fmt.Errorf("control '%s' not found: %w", d.Selector, err)
		}
		value, err := el.Property(d.Attribute)
		if err != nil {
			return nil, err
		}
		return value.String(), nil

	case InputRadio:
		obj, err := page.Eval(`(sel, attr) => {
			const el = document.querySelector(sel + ':checked');
			return el ? String(el[attr]) : null;
		}`, d.Selector, d.Attribute)
		if err != nil {
			return nil, err
		}
		if obj.Value.Nil() {
			return nil, fmt.Errorf("radio group '%s' has no checked member", d.Selector)
		}
		return obj.Value.String(), nil

	default:
		return nil, fmt.Errorf("unsupported input kind '%s'", d.Kind)
	}
}

// writeSetting brings a single control to the desired value and reports
// whether anything changed.
func (c *Client) writeSetting(page *rod.Page, d Descriptor, value any) (bool, error) {
	switch d.Kind {
	case InputCheckbox:
		el, err := page.Element(d.Selector)
		if err != nil {
			return false, fmt.Errorf("control '%s' not found: %w", d.Selector, err)
		}
		current, err := el.Property(d.Attribute)
		if err != nil {
			return false, err
		}
		desired, err := asBool(value)
		if err != nil {
			return false, err
		}
		if current.Bool() == desired {
			return false, nil
		}
		return true, el.Click(proto.InputMouseButtonLeft, 1)

	case InputText:
		el, err := page.Element(d.Selector)
		if err != nil {
			return false, fmt.Errorf("control '%s' not found: %w", d.Selector, err)
		}
		current, err := el.Property(d.Attribute)
		if err != nil {
			return false, err
		}
		desired := fmt.Sprintf("%v", value)
		if current.String() == desired {
			return false, nil
		}
		if err := el.SelectAllText(); err != nil {
			return false, err
		}
		return true, el.Input(desired)

	case InputRadio:
		desired := fmt.Sprintf("%v", value)
		member := fmt.Sprintf("%s[%s='%s']", d.Selector, d.Attribute, desired)
		el, err := page.Element(member)
		if err != nil {
			return false, fmt.Errorf("radio member '%s' not found: %w", member, err)
		}
		checked, err := el.Property("checked")
		if err != nil {
			return false, err
		}
		if checked.Bool() {
			return false, nil
		}
		return true, el.Click(proto.InputMouseButtonLeft, 1)

	default:
		return false, fmt.Errorf("unsupported input kind '%s'", d.Kind)
	}
}

func (c *Client) openPage(ctx context.Context, url string) (*rod.Page, error) {
	page, err := c.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", url, err)
	}
	page = page.Context(ctx)
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load '%s': %w", url, err)
	}
	c.waitIdle(page)
	return page, nil
}

// waitIdle waits until the page has no in-flight requests, bounded so that
// long-polling connections cannot hang the client.
func (c *Client) waitIdle(page *rod.Page) {
	page.Timeout(c.timeout).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)()
}

// loggedInUser returns the login of the active session, empty when the
// browser is not signed in.
func (c *Client) loggedInUser(page *rod.Page) (string, error) {
	obj, err := page.Eval(`() => {
		const meta = document.querySelector('meta[name="user-login"]');
		return meta ? meta.content : '';
	}`)
	if err != nil {
		return "", err
	}
	return obj.Value.String(), nil
}

func (c *Client) fillInput(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("input '%s' not found: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (c *Client) click(page *rod.Page, selector string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("control '%s' not found: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (c *Client) pageURL(org, page string) string {
	return fmt.Sprintf("%s/organizations/%s/%s", baseURL, org, page)
}

// asBool accepts a bool or its string form, radio controls report booleans
// as 'true'/'false' strings.
func asBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("value '%v' is not a boolean", value)
	}
}

func sortedPages(grouped map[string][]string) []string {
	pages := make([]string, 0, len(grouped))
	for page := range grouped {
		pages = append(pages, page)
	}
	sort.Strings(pages)
	return pages
}
