// Package main reports translation coverage for the embedded locale
// catalogs so translators can see what pt-BR (and future locales) still
// miss relative to the base locale.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/louisbranch/threshold.quest/internal/platform/config"
	i18ncatalog "github.com/louisbranch/threshold.quest/internal/platform/i18n/catalog"
)

type report struct {
	BaseLocale string         `json:"base_locale"`
	Locales    []localeReport `json:"locales"`
}

type localeReport struct {
	Locale     string            `json:"locale"`
	Keys       int               `json:"keys"`
	Translated int               `json:"translated"`
	Completion float64           `json:"completion"`
	Missing    []string          `json:"missing_keys,omitempty"`
	Extra      []string          `json:"extra_keys,omitempty"`
	Namespaces []namespaceReport `json:"namespaces"`
}

type namespaceReport struct {
	Name       string  `json:"name"`
	Keys       int     `json:"keys"`
	Translated int     `json:"translated"`
	Missing    int     `json:"missing"`
	Extra      int     `json:"extra"`
	Completion float64 `json:"completion"`
}

func main() {
	var baseLocale string
	var markdownOut string
	var jsonOut string

	flag.StringVar(&baseLocale, "base-locale", i18ncatalog.BaseLocale, "locale treated as the translation source of truth")
	flag.StringVar(&markdownOut, "out", "docs/i18n-status.md", "markdown output path")
	flag.StringVar(&jsonOut, "json-out", "docs/i18n-status.json", "json output path")
	flag.Parse()

	bundle, err := i18ncatalog.LoadEmbedded()
	if err != nil {
		config.Exitf("Error: load locale catalogs: %v", err)
	}
	if !bundle.HasLocale(baseLocale) {
		config.Exitf("Error: base locale %q is missing from catalogs", baseLocale)
	}

	rep := buildReport(bundle, baseLocale)
	if err := writeFile(jsonOut, renderJSON(rep)); err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := writeFile(markdownOut, renderMarkdown(rep)); err != nil {
		config.Exitf("Error: %v", err)
	}
	fmt.Printf("wrote %s and %s\n", markdownOut, jsonOut)
}

func buildReport(bundle *i18ncatalog.Bundle, baseLocale string) report {
	baseMessages := bundle.LocaleMessages(baseLocale)

	locales := bundle.Locales()
	statuses := make([]localeReport, 0, len(locales))
	for _, locale := range locales {
		missing, extra := keyDiff(baseMessages, bundle.LocaleMessages(locale))
		translated := len(baseMessages) - len(missing)

		namespaces := namespaceUnion(bundle, baseLocale, locale)
		namespaceReports := make([]namespaceReport, 0, len(namespaces))
		for _, namespace := range namespaces {
			baseNS := bundle.NamespaceMessages(baseLocale, namespace)
			nsMissing, nsExtra := keyDiff(baseNS, bundle.NamespaceMessages(locale, namespace))
			nsTranslated := len(baseNS) - len(nsMissing)
			namespaceReports = append(namespaceReports, namespaceReport{
				Name:       namespace,
				Keys:       len(baseNS),
				Translated: nsTranslated,
				Missing:    len(nsMissing),
				Extra:      len(nsExtra),
				Completion: percent(nsTranslated, len(baseNS)),
			})
		}

		statuses = append(statuses, localeReport{
			Locale:     locale,
			Keys:       len(baseMessages),
			Translated: translated,
			Completion: percent(translated, len(baseMessages)),
			Missing:    missing,
			Extra:      extra,
			Namespaces: namespaceReports,
		})
	}

	return report{BaseLocale: baseLocale, Locales: statuses}
}

// keyDiff returns base keys absent from target and target keys absent
// from base, both sorted.
func keyDiff(base, target map[string]string) (missing, extra []string) {
	for key := range base {
		if _, ok := target[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range target {
		if _, ok := base[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)
	return missing, extra
}

func namespaceUnion(bundle *i18ncatalog.Bundle, baseLocale, locale string) []string {
	seen := map[string]struct{}{}
	for _, namespace := range bundle.Namespaces(baseLocale) {
		seen[namespace] = struct{}{}
	}
	for _, namespace := range bundle.Namespaces(locale) {
		seen[namespace] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for namespace := range seen {
		out = append(out, namespace)
	}
	sort.Strings(out)
	return out
}

func percent(translated, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(translated)*1000/float64(total)) / 10
}

func renderJSON(rep report) []byte {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		// The report is plain structs; this cannot fail at runtime.
		panic(err)
	}
	return append(data, '\n')
}

func renderMarkdown(rep report) []byte {
	var b strings.Builder
	b.WriteString("# Translation Status\n\n")
	b.WriteString("Generated by `go run ./internal/tools/i18nstatus`.\n\n")
	fmt.Fprintf(&b, "Base locale: `%s`.\n\n", rep.BaseLocale)

	b.WriteString("| Locale | Keys | Translated | Missing | Extra | Completion |\n")
	b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
			locale.Locale, locale.Keys, locale.Translated, len(locale.Missing), len(locale.Extra), locale.Completion)
	}

	for _, locale := range rep.Locales {
		fmt.Fprintf(&b, "\n## %s\n\n", locale.Locale)
		b.WriteString("| Namespace | Keys | Translated | Missing | Extra | Completion |\n")
		b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
		for _, ns := range locale.Namespaces {
			fmt.Fprintf(&b, "| `%s` | %d | %d | %d | %d | %.1f%% |\n",
				ns.Name, ns.Keys, ns.Translated, ns.Missing, ns.Extra, ns.Completion)
		}
		if len(locale.Missing) > 0 {
			b.WriteString("\nMissing keys:\n\n")
			for _, key := range locale.Missing {
				fmt.Fprintf(&b, "- `%s`\n", key)
			}
		}
		if len(locale.Extra) > 0 {
			b.WriteString("\nExtra keys:\n\n")
			for _, key := range locale.Extra {
				fmt.Fprintf(&b, "- `%s`\n", key)
			}
		}
	}

	return []byte(b.String())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
