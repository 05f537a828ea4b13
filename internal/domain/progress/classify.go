package progress

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	downloadedToken    = "Downloaded"
	alreadyExistsToken = "already exists"
	notApplicableMark  = "Not applicable on this platform"
)

// rule maps any of its substrings to a fixed state.
type rule struct {
	substrings []string
	message    string
	mode       Mode
}

var (
	// logSourcePrefixes are tags the updater or the bootstrap put in front of lines.
	//nolint:gochecknoglobals // Static pattern table.
	logSourcePrefixes = []string{"[BrassworksUpdater]", "[packwiz-installer]"}

	// progressPattern matches "(<current>/<total>) <content>".
	//nolint:gochecknoglobals // Static pattern table.
	progressPattern = regexp.MustCompile(`^\((\d+)/(\d+)\)\s+(.*)$`)

	// rules are tried in order when progressPattern does not match; first match wins.
	//nolint:gochecknoglobals // Static pattern table.
	rules = []rule{
		{substrings: []string{"Current version", "New version"}, message: "Checking for updates...", mode: Indeterminate},
		{substrings: []string{"Loading manifest", "Loading pack"}, message: "Loading configuration...", mode: Indeterminate},
		{
			substrings: []string{"Checking local files", "Comparing new files", "Validating"},
			message:    "Scanning local files...",
			mode:       Indeterminate,
		},
		{substrings: []string{"invalidated"}, message: "Found updates...", mode: Indeterminate},
		{substrings: []string{"Already up to date"}, message: "Pack is up to date!", mode: Determinate},
		{substrings: []string{"Finished successfully"}, message: "Update Complete!", mode: Determinate},
	}
)

// Classify maps one raw log line to the next progress state.
// It returns false when the line carries no progress information.
//
// Indeterminate results carry prior's step counts forward so a numeric meter
// keeps its total while the bar only shows activity.
func Classify(rawLine string, prior State) (State, bool) {
	line := cleanLine(rawLine)
	if line == "" || strings.HasPrefix(line, notApplicableMark) {
		return State{}, false
	}

	if match := progressPattern.FindStringSubmatch(line); match != nil {
		return classifyProgress(parseCount(match[1]), parseCount(match[2]), strings.TrimSpace(match[3]), prior), true
	}

	for _, r := range rules {
		if !containsAny(line, r.substrings) {
			continue
		}

		if r.mode == Determinate {
			return State{Message: r.message, Mode: Determinate, Current: 1, Total: 1}, true
		}

		return indeterminate(r.message, prior), true
	}

	return State{}, false
}

func classifyProgress(current, total uint, content string, prior State) State {
	if total == 0 {
		return indeterminate(describe(content, ""), prior)
	}

	current = min(current, total)
	fraction := fmt.Sprintf("%d/%d", current, total)

	return State{
		Message: describe(content, fraction),
		Mode:    Determinate,
		Current: current,
		Total:   total,
	}
}

// describe renders the message of a progress line. An empty fraction leaves
// the counts out, which is how a line with an unknown total is shown.
func describe(content, fraction string) string {
	var message string

	switch {
	case strings.Contains(content, downloadedToken):
		message = "Downloading: " + strings.TrimSpace(strings.Replace(content, downloadedToken, "", 1))
	case strings.Contains(content, alreadyExistsToken):
		message = "Verifying: " + strings.Fields(content)[0]
	case fraction == "":
		return "Processing..."
	default:
		return "Processing: " + fraction
	}

	if fraction == "" {
		return message
	}

	return message + " (" + fraction + ")"
}

func indeterminate(message string, prior State) State {
	return State{
		Message: message,
		Mode:    Indeterminate,
		Current: prior.Current,
		Total:   prior.Total,
	}
}

func cleanLine(rawLine string) string {
	line := strings.TrimSpace(rawLine)
	for _, prefix := range logSourcePrefixes {
		if strings.HasPrefix(line, prefix) {
			line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
			break
		}
	}

	return line
}

// parseCount reads a step count; values that do not fit degrade to zero.
func parseCount(s string) uint {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}

	return uint(n)
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
