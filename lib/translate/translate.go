package translate

import (
	"os"

	"gopkg.in/leonelquinteros/gotext.v1"
)

// default locale to use
const DefaultLocale = "en_US"
const Domain = "default"

const EnvLocale = "SLIMWEB_LANG"
const EnvLocalePath = "SLIMWEB_LOCALE_PATH"

// DefaultPath is where .po catalogs are looked up as <path>/<locale>/LC_MESSAGES/<domain>.po
const DefaultPath = "/usr/share/slimweb/locale"

func init() {
	Configure(os.Getenv(EnvLocalePath), os.Getenv(EnvLocale))
}

// Configure sets the catalog path and locale, empty values use the defaults
func Configure(path, locale string) {
	if path == "" {
		path = DefaultPath
	}
	if locale == "" {
		locale = DefaultLocale
	}
	gotext.Configure(path, locale, Domain)
}

var T = gotext.Get

// E converts an error to a translated string
func E(err error) (str string) {
	if err != nil {
		str = T(err.Error())
	}
	return
}
