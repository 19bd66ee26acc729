// Package version хранит сведения о сборке, проставляемые через -ldflags:
//
//	-X github.com/vladislavdragonenkov/backoffice/internal/version.version=v1.2.0
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GetVersion возвращает версию для /healthz.
func GetVersion() string { return version }

// Fields — поля сборки для стартовой записи в лог.
func Fields() log.Fields {
	return log.Fields{
		"version":    version,
		"commit":     commit,
		"build_date": date,
	}
}

func String() string {
	return fmt.Sprintf("backoffice %s (commit %s, built %s)", version, commit, date)
}
