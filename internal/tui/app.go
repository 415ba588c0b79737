// Package tui is the terminal chat client. It talks to the profile daemon
// and drives one chat.Controller for the open conversation.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/store"
	"github.com/matheus3301/pawchat/internal/tui/keys"
	"github.com/matheus3301/pawchat/internal/tui/model"
	"github.com/matheus3301/pawchat/internal/tui/ui"
	"github.com/matheus3301/pawchat/internal/tui/views"
)

const (
	pageInbox   = "inbox"
	pageChat    = "chat"
	pageDetails = "details"
	pageHelp    = "help"

	refreshInterval = 5 * time.Second
	callTimeout     = 10 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	root      *tview.Flex
	theme     *ui.Theme
	vm        *model.ViewModel
	registry  *keys.Registry
	statusBar *views.StatusBar
	inbox     *views.Inbox
	thread    *views.Thread
	details   *views.Details
	help      *views.Help
	prompt    *ui.Prompt
	logger    *zap.Logger

	// returnTo is the page Escape goes back to from details and help.
	returnTo string
	initial  *store.Participant

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI for profileName signed in as self.
func NewApp(d model.Daemon, profileName string, self store.Participant, settings model.ChatSettings, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		theme:     theme,
		vm:        model.NewViewModel(d, self, settings, logger),
		registry:  keys.NewRegistry(),
		statusBar: views.NewStatusBar(theme),
		inbox:     views.NewInbox(theme),
		thread:    views.NewThread(theme, self.Identity),
		details:   views.NewDetails(theme),
		help:      views.NewHelp(theme),
		prompt:    ui.NewPrompt(theme),
		logger:    logger,
		returnTo:  pageInbox,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName, self.Identity)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Name: "command", Key: tcell.KeyRune, Rune: ':',
		Description: ":cmd", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "") },
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "help", Key: tcell.KeyRune, Rune: '?',
		Description: "?:help", Visible: true,
		Handler: a.showHelp,
	})
	a.registry.AddGlobal(&keys.Action{
		Name: "quit", Key: tcell.KeyRune, Rune: 'q',
		Description: "q:quit", Visible: true,
		Handler: a.Stop,
	})

	a.registry.AddPage(pageInbox, &keys.Action{
		Name: "new", Key: tcell.KeyRune, Rune: 'n',
		Description: "n:new chat", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "open ") },
	})
	a.registry.AddPage(pageInbox, &keys.Action{
		Name: "filter", Key: tcell.KeyRune, Rune: '/',
		Description: "/:filter", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptFilter, "") },
	})
	a.registry.AddPage(pageInbox, &keys.Action{
		Name: "reload", Key: tcell.KeyRune, Rune: 'r',
		Description: "r:reload", Visible: true,
		Handler: func() { go a.reload() },
	})

	a.registry.AddPage(pageChat, &keys.Action{
		Name: "compose", Key: tcell.KeyRune, Rune: 'i',
		Description: "i:compose", Visible: true,
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "older", Key: tcell.KeyRune, Rune: 'o',
		Description: "o:older", Visible: true,
		Handler: func() { go a.loadOlder() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "details", Key: tcell.KeyRune, Rune: 'd',
		Description: "d:details", Visible: true,
		Handler: func() { go a.showDetails() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "retry", Key: tcell.KeyRune, Rune: 'r',
		Description: "r:retry", Visible: true,
		Handler: func() { go a.retry() },
	})
	a.registry.AddPage(pageChat, &keys.Action{
		Name: "back", Key: tcell.KeyRune, Rune: 'q',
		Description: "q:back", Visible: true,
		Handler: a.closeChat,
	})
}

func (a *App) setupCallbacks() {
	a.inbox.SetSelectedFunc(func(row, _ int) {
		if e, ok := a.inbox.At(row); ok {
			a.openChat(e.Counterpart)
		}
	})

	a.thread.SetOnSend(func(text string) {
		if err := a.vm.Send(text); err != nil {
			a.vm.Flash.Set(model.Err, "Send failed: "+err.Error(), 5*time.Second)
		}
		a.refresh()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptFilter:
			a.inbox.SetFilter(text)
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)
	a.prompt.SetCommands(CommandNames)
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageInbox, a.inbox, true, true)
	a.pages.AddPage(pageChat, a.thread, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.statusBar, 1, 0, false)
	a.app.SetRoot(a.root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// The prompt handles its own Enter and Escape.
		if a.prompt.HasFocus() {
			return event
		}
		if a.thread.Composer().HasFocus() {
			if event.Key() == tcell.KeyEscape {
				a.app.SetFocus(a.thread.Messages())
				return nil
			}
			return event
		}

		page, _ := a.pages.GetFrontPage()
		if event.Key() == tcell.KeyEscape {
			switch page {
			case pageDetails, pageHelp:
				a.switchTo(a.returnTo)
				return nil
			case pageChat:
				a.closeChat()
				return nil
			}
		}
		if a.registry.HandleEvent(page, event) {
			return nil
		}
		return event
	})
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "open", "o":
		p, err := cmd.Counterpart()
		if err != nil {
			a.vm.Flash.Set(model.Warn, err.Error(), 5*time.Second)
			a.refresh()
			return
		}
		a.openChat(p)
	case "inbox", "i":
		a.closeChat()
	case "older":
		go a.loadOlder()
	case "details":
		go a.showDetails()
	case "retry":
		go a.retry()
	case "help", "h":
		a.showHelp()
	case "quit", "q":
		a.Stop()
	default:
		a.vm.Flash.Set(model.Warn, "unknown command: "+cmd.Name, 5*time.Second)
		a.refresh()
	}
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	switch page {
	case pageInbox:
		a.app.SetFocus(a.inbox)
	case pageChat:
		a.app.SetFocus(a.thread.Messages())
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageHelp:
		a.app.SetFocus(a.help)
	}
	a.refresh()
}

func (a *App) showPrompt(mode ui.PromptMode, text string) {
	a.prompt.Activate(mode)
	a.prompt.SetText(text)
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	page, _ := a.pages.GetFrontPage()
	a.switchTo(page)
}

func (a *App) showHelp() {
	page, _ := a.pages.GetFrontPage()
	if page == pageInbox || page == pageChat {
		a.returnTo = page
	}
	a.help.Update([]views.HelpSection{
		{Title: "Inbox", Hints: a.registry.Hints(pageInbox)},
		{Title: "Chat", Hints: append(a.registry.Hints(pageChat), "Enter:send (in composer)", "Esc:leave composer / back")},
		{Title: "Commands", Hints: []string{":open <identity> [name]:open a chat", ":inbox:back to inbox", ":older:load older messages", ":details:conversation details", ":retry:reopen after an error", ":quit:quit"}},
	})
	a.switchTo(pageHelp)
}

// openChat switches to the chat page and opens the session in the background.
func (a *App) openChat(counterpart store.Participant) {
	title := counterpart.Name
	if title == "" {
		title = counterpart.Identity
	}
	a.thread.SetTitle(title)
	a.returnTo = pageChat
	a.switchTo(pageChat)

	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		if _, err := a.vm.OpenChat(ctx, counterpart); err != nil {
			a.logger.Warn("open chat failed", zap.String("counterpart", counterpart.Identity), zap.Error(err))
		}
		a.app.QueueUpdateDraw(a.refresh)
	}()
}

func (a *App) closeChat() {
	a.vm.CloseChat()
	a.returnTo = pageInbox
	a.switchTo(pageInbox)
	go a.reload()
}

func (a *App) retry() {
	ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
	defer cancel()
	if err := a.vm.Retry(ctx); err != nil {
		a.logger.Warn("retry failed", zap.Error(err))
	}
	a.app.QueueUpdateDraw(a.refresh)
}

func (a *App) loadOlder() {
	ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
	defer cancel()
	if _, err := a.vm.LoadOlder(ctx); err != nil {
		a.vm.Flash.Set(model.Err, "Load failed: "+err.Error(), 5*time.Second)
	}
	a.app.QueueUpdateDraw(a.refresh)
}

func (a *App) showDetails() {
	ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
	defer cancel()
	v, err := a.vm.Details(ctx)
	a.app.QueueUpdateDraw(func() {
		if err != nil {
			a.vm.Flash.Set(model.Warn, err.Error(), 5*time.Second)
			a.refresh()
			return
		}
		a.details.Update(v)
		a.switchTo(pageDetails)
	})
}

func (a *App) reload() {
	ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
	defer cancel()
	if err := a.vm.LoadInbox(ctx); err != nil {
		a.vm.Flash.Set(model.Err, "Inbox: "+err.Error(), 5*time.Second)
	}
	if err := a.vm.LoadStatus(ctx); err != nil {
		a.logger.Debug("status refresh failed", zap.Error(err))
	}
}

// refresh redraws from the view model. Call on the UI goroutine.
func (a *App) refresh() {
	page, _ := a.pages.GetFrontPage()
	a.inbox.Update(a.vm.Inbox())
	a.statusBar.SetHints(a.registry.Hints(page))

	if ctl := a.vm.Active(); ctl != nil {
		a.thread.Update(ctl.State(), ctl.Err(), ctl.Snapshot(), ctl.HasMore())
		a.statusBar.SetState(string(ctl.State()))
	} else {
		a.statusBar.SetState("")
	}
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

// OpenOnStart makes Run open a chat with counterpart instead of showing
// the inbox.
func (a *App) OpenOnStart(counterpart store.Participant) {
	a.initial = &counterpart
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	go a.loop()
	go a.reload()
	go a.vm.WatchInbox(a.ctx)
	if a.initial != nil {
		a.openChat(*a.initial)
	}
	err := a.app.Run()
	a.cancel()
	a.vm.CloseChat()
	return err
}

func (a *App) loop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.vm.RefreshCh():
			a.app.QueueUpdateDraw(a.refresh)
		case <-ticker.C:
			a.reload()
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
