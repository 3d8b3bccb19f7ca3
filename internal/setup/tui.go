package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/config"
	"gopkg.in/yaml.v3"
)

// OutputFile is where the wizard writes the generated configuration.
const OutputFile = "config.gen.yaml"

const title = "PUMPSNIPER CONFIG WIZARD"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers are the raw wizard inputs.
type answers struct {
	preset     string
	mode       string
	gate       string
	buyAmount  string
	window     string
	minTrades  string
	minVolume  string
	minRatio   string
	takeProfit string
	stopLoss   string
	grace      string
	maxHold    string
	slippage   string
	webAddr    string
}

func step(name string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(name))
}

// RunTUI launches the terminal configuration wizard and returns the path of the written file.
func RunTUI() (string, error) {
	a := answers{preset: config.DefaultPreset, mode: config.ModePaper}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Tune the sniper before it goes hunting.\n"))

	fmt.Println(stepStyle.Render("STEP 1: STRATEGY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Start from a preset").
				Options(
					huh.NewOption("Mover (10 trades, 0.5 SOL, ratio 1.4)", "mover"),
					huh.NewOption("Hunter (tiny size, quick 30s hold)", "hunter"),
					huh.NewOption("Breakeven (exit at entry price)", "breakeven"),
					huh.NewOption("Production (buy first trade, timed exit)", "production"),
				).
				Value(&a.preset),
			huh.NewSelect[string]().
				Title("Execution mode").
				Options(
					huh.NewOption("Paper trading", config.ModePaper),
					huh.NewOption("Live (signs real transactions)", config.ModeLive),
				).
				Value(&a.mode),
		),
	).Run()
	if err != nil {
		return "", err
	}

	preset, err := config.Preset(a.preset)
	if err != nil {
		return "", err
	}
	a.fill(preset)

	step("STEP 2: SCORING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Concurrency").
				Options(
					huh.NewOption("One token at a time", "single"),
					huh.NewOption("Independent per token", "independent"),
				).
				Value(&a.gate),
			huh.NewInput().
				Title("Buy amount (SOL)").
				Value(&a.buyAmount).
				Validate(validatePositive),
			huh.NewInput().
				Title("Observation window").
				Description("Duration string (e.g. 15s)").
				Value(&a.window).
				Validate(validateDuration),
			huh.NewInput().
				Title("Min trades").
				Value(&a.minTrades),
			huh.NewInput().
				Title("Min volume (SOL)").
				Value(&a.minVolume).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Min buy/sell ratio").
				Value(&a.minRatio).
				Validate(validateNonNegative),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("STEP 3: EXIT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Take profit multiple").
				Description("0 disables").
				Value(&a.takeProfit).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Stop loss multiple").
				Description("0 disables").
				Value(&a.stopLoss).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Grace period").
				Value(&a.grace).
				Validate(validateDuration),
			huh.NewInput().
				Title("Max hold").
				Value(&a.maxHold).
				Validate(validateDuration),
			huh.NewInput().
				Title("Slippage %").
				Value(&a.slippage).
				Validate(validateNonNegative),
			huh.NewInput().
				Title("Dashboard address").
				Description("Empty disables the HTTP endpoints (e.g. :8080)").
				Value(&a.webAddr),
		),
	).Run()
	if err != nil {
		return "", err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Preset: %s\nMode: %s\nGate: %s\nBuy: %s SOL\nWindow: %s\nExit: TP %sx / SL %sx / hold %s\n",
		a.preset, a.mode, a.gate, a.buyAmount, a.window, a.takeProfit, a.stopLoss, a.maxHold,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	cfgTmp, err := a.build()
	if err != nil {
		return "", err
	}
	if err := save(OutputFile, cfgTmp); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting bot...", OutputFile)))
	time.Sleep(1500 * time.Millisecond)

	return OutputFile, nil
}

// fill prefills the inputs with preset values.
func (a *answers) fill(p config.ConfigTmp) {
	a.gate = p.Gate
	a.buyAmount = p.BuyAmount
	a.window = p.Window.String()
	a.minTrades = fmt.Sprint(p.MinTrades)
	a.minVolume = p.MinVolume
	a.minRatio = p.MinRatio
	a.takeProfit = p.TakeProfit
	a.stopLoss = p.StopLoss
	a.grace = p.GracePeriod.String()
	a.maxHold = p.MaxHold.String()
	a.slippage = p.Slippage
	a.webAddr = p.WebAddr
}

// build turns the answers into a config that passes validation.
func (a answers) build() (config.ConfigTmp, error) {
	tmp, err := config.Preset(a.preset)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	var minTrades int
	if _, err := fmt.Sscan(a.minTrades, &minTrades); err != nil {
		return config.ConfigTmp{}, fmt.Errorf("min trades must be an integer: %w", err)
	}
	window, err := time.ParseDuration(a.window)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	grace, err := time.ParseDuration(a.grace)
	if err != nil {
		return config.ConfigTmp{}, err
	}
	maxHold, err := time.ParseDuration(a.maxHold)
	if err != nil {
		return config.ConfigTmp{}, err
	}

	tmp.Mode = a.mode
	tmp.Gate = a.gate
	tmp.BuyAmount = a.buyAmount
	tmp.Window = window
	tmp.MinTrades = minTrades
	tmp.MinVolume = a.minVolume
	tmp.MinRatio = a.minRatio
	tmp.TakeProfit = a.takeProfit
	tmp.StopLoss = a.stopLoss
	tmp.GracePeriod = grace
	tmp.MaxHold = maxHold
	tmp.Slippage = a.slippage
	tmp.WebAddr = a.webAddr

	cfg, err := tmp.Parse()
	if err != nil {
		return config.ConfigTmp{}, err
	}
	// credentials come from the environment at startup
	if cfg.Mode == config.ModeLive {
		cfg.PrivateKey = "-"
	}
	if err := cfg.Validate(); err != nil {
		return config.ConfigTmp{}, err
	}

	return tmp, nil
}

func save(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

func validatePositive(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}
