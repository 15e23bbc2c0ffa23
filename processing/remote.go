package processing

import (
	"bytes"
	"context"
	"embed"
	"log/slog"
	"strconv"
	"strings"
	"text/template"

	"tickerlake/apperror"
	"tickerlake/partition"
	"tickerlake/storage"
)

//go:embed templates/databricks.py.tmpl
var templates embed.FS

var databricksTemplate = template.Must(
	template.New("databricks.py.tmpl").
		Funcs(template.FuncMap{"py": strconv.Quote}).
		ParseFS(templates, "templates/databricks.py.tmpl"),
)

// RemoteTemplate renders a Databricks PySpark cell that loads the stored artifacts. It performs no I/O.
type RemoteTemplate struct {
	partitioning string
	logger       *slog.Logger
}

// NewRemoteTemplate renders for the given partitioning mode: "daily" reads every partition of the
// instrument, anything else reads the run's single artifact.
func NewRemoteTemplate(partitioning string, logger *slog.Logger) *RemoteTemplate {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteTemplate{partitioning: partitioning, logger: logger}
}

func (r *RemoteTemplate) Target() Target { return Remote }

type databricksData struct {
	Instrument string
	Root       string
	Cloud      bool
	First      string
	Last       string
	Path       string
	BasePath   string
}

func (r *RemoteTemplate) Dispatch(_ context.Context, loc storage.Location) (*Outcome, error) {
	data, err := r.data(loc)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := databricksTemplate.Execute(&buf, data); err != nil {
		return nil, apperror.Wrap(apperror.InvalidIdentifier, err, "render databricks template")
	}
	return &Outcome{Target: Remote, Code: buf.String()}, nil
}

func (r *RemoteTemplate) data(loc storage.Location) (databricksData, error) {
	if strings.TrimSpace(loc.Root) == "" {
		return databricksData{}, apperror.New(apperror.InvalidIdentifier, "location has no root")
	}
	if len(loc.Keys) == 0 {
		return databricksData{}, apperror.New(apperror.InvalidIdentifier, "location holds no partition keys")
	}

	// A hand-built Location may carry zero or malformed keys.
	first, err := partition.Parse(loc.Keys[0].String())
	if err != nil {
		return databricksData{}, err
	}
	last, err := partition.Parse(loc.Keys[len(loc.Keys)-1].String())
	if err != nil {
		return databricksData{}, err
	}
	if first.Instrument() != last.Instrument() {
		return databricksData{}, apperror.Newf(apperror.InvalidIdentifier, "location mixes instruments %s and %s", first.Instrument(), last.Instrument())
	}

	root := strings.TrimRight(loc.Root, "/")
	if loc.Target == storage.Local {
		root = "file://" + root
		r.logger.Warn("remote processing of local storage: the generated code points at this machine's filesystem", "root", root)
	}

	d := databricksData{
		Instrument: first.Instrument(),
		Root:       root,
		Cloud:      loc.Target == storage.Cloud,
		First:      first.String(),
		Last:       last.String(),
	}
	if r.partitioning == "daily" {
		d.BasePath = root
	} else {
		d.Path = root + "/" + last.Path()
	}
	return d, nil
}
