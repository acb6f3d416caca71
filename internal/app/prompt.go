package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"mentorreport/internal/pipeline"
)

// PromptSource asks whether to search SharePoint by AFM or to use a local
// folder, then reads the AFM or the path.
func PromptSource(in io.Reader, out io.Writer) (pipeline.Source, error) {
	r := bufio.NewReader(in)
	choice, err := ask(r, out, "Enter [1] for AFM search or [2] for direct folder path: ")
	if err != nil {
		return pipeline.Source{}, err
	}
	switch choice {
	case "1":
		afm, err := ask(r, out, "Enter AFM number: ")
		if err != nil {
			return pipeline.Source{}, err
		}
		if afm == "" {
			return pipeline.Source{}, errors.New("AFM number required")
		}
		return pipeline.Source{AFM: afm}, nil
	case "2":
		dir, err := ask(r, out, "Enter directory path: ")
		if err != nil {
			return pipeline.Source{}, err
		}
		if dir == "" {
			return pipeline.Source{}, errors.New("directory path required")
		}
		return pipeline.Source{Dir: dir}, nil
	}
	return pipeline.Source{}, fmt.Errorf("invalid choice %q", choice)
}

func ask(r *bufio.Reader, out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.Trim(strings.TrimSpace(line), `"'`), nil
}
