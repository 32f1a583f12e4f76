package application

import (
	"fmt"
	"strings"

	"login-ratelimit/loginlimit/domain"
)

const DefaultLocale = "pt-BR"

type catalog struct {
	reasons map[domain.Reason]string
	second  [2]string
	minute  [2]string
	hour    [2]string
}

var catalogs = map[string]catalog{
	"pt-BR": {
		reasons: map[domain.Reason]string{
			domain.ReasonProgressiveDelay: "Muitas tentativas seguidas. Aguarde %s antes de tentar novamente.",
			domain.ReasonTooManyAttempts:  "Muitas tentativas de login. Tente novamente em %s.",
			domain.ReasonAccountLocked:    "Conta bloqueada temporariamente por segurança. Tente novamente em %s.",
		},
		second: [2]string{"segundo", "segundos"},
		minute: [2]string{"minuto", "minutos"},
		hour:   [2]string{"hora", "horas"},
	},
	"en": {
		reasons: map[domain.Reason]string{
			domain.ReasonProgressiveDelay: "Too many attempts in a row. Please wait %s before trying again.",
			domain.ReasonTooManyAttempts:  "Too many login attempts. Try again in %s.",
			domain.ReasonAccountLocked:    "Account temporarily locked for security reasons. Try again in %s.",
		},
		second: [2]string{"second", "seconds"},
		minute: [2]string{"minute", "minutes"},
		hour:   [2]string{"hour", "hours"},
	},
}

// Messages gera o texto localizado de uma decisão negada.
// Locale desconhecido cai em DefaultLocale; "pt" e "en-US" casam pelo prefixo.
type Messages struct {
	Locale string
}

func (m Messages) catalog() catalog {
	loc := strings.TrimSpace(m.Locale)
	if c, ok := catalogs[loc]; ok {
		return c
	}
	lang, _, _ := strings.Cut(strings.ToLower(loc), "-")
	for k, c := range catalogs {
		if lang != "" && strings.HasPrefix(strings.ToLower(k), lang) {
			return c
		}
	}
	return catalogs[DefaultLocale]
}

// For devolve "" para decisões permitidas.
func (m Messages) For(d domain.Decision) string {
	if d.Allowed {
		return ""
	}
	c := m.catalog()
	tpl, ok := c.reasons[d.Reason]
	if !ok {
		tpl = c.reasons[domain.ReasonTooManyAttempts]
	}
	return fmt.Sprintf(tpl, c.wait(d.TimeRemaining))
}

// wait formata em segundos abaixo de 1 minuto, em minutos abaixo de 2 horas
// e em horas acima disso, sempre arredondando para cima.
func (c catalog) wait(seconds int) string {
	switch {
	case seconds < 60:
		return plural(seconds, c.second)
	case seconds < 2*3600:
		return plural((seconds+59)/60, c.minute)
	default:
		return plural((seconds+3599)/3600, c.hour)
	}
}

func plural(n int, forms [2]string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, forms[0])
	}
	return fmt.Sprintf("%d %s", n, forms[1])
}
