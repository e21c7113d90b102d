package builder

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// libraryDir is where the vendored library lands inside the build context
// and, mirrored under /opt, inside the image before its setup entry point
// runs.
const libraryDir = "east"

var dockerfileTmpl = template.Must(template.New("Dockerfile").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`FROM {{.BaseImage}}
{{if .Packages}}
RUN apt-get update && \
    apt-get install -y --no-install-recommends {{join .Packages " "}} && \
    rm -rf /var/lib/apt/lists/*
{{end}}
COPY {{.LibraryDir}} /opt/{{.LibraryDir}}
RUN cd /opt/{{.LibraryDir}} && python3 setup.py install

COPY requirements.txt /tmp/requirements.txt
RUN pip3 install -r /tmp/requirements.txt

WORKDIR /code
CMD ["python3", "run.py"]
`))

type dockerfileData struct {
	BaseImage  string
	Packages   []string
	LibraryDir string
}

// renderDockerfile produces the image definition for a spec. It is a pure
// function of the spec, so unchanged inputs always yield the same file.
func renderDockerfile(spec domain.ImageSpec) (string, error) {
	var b strings.Builder
	data := dockerfileData{
		BaseImage:  spec.BaseImage,
		Packages:   spec.Packages,
		LibraryDir: libraryDir,
	}
	if err := dockerfileTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render dockerfile: %w", err)
	}
	return b.String(), nil
}
