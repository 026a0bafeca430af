// ABOUTME: Interactive setup of the initial frequency set
// ABOUTME: Repeats until the operator confirms the entered tones
package session

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

func (c *Controller) promptInitial() ([]float64, error) {
	for {
		fmt.Fprint(c.out, "number of frequencies: ")
		tok, err := c.token()
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(tok)
		if err != nil || count < 0 {
			fmt.Fprintf(c.out, "invalid count %q\n", tok)
			c.tokens = nil
			continue
		}

		freqs := make([]float64, 0, count)
		for len(freqs) < count {
			fmt.Fprintf(c.out, "frequency %d (MHz): ", len(freqs))
			tok, err := c.token()
			if err != nil {
				return nil, err
			}
			v, err := parseFrequency(tok)
			if err != nil {
				fmt.Fprintf(c.out, "%v\n", err)
				continue
			}
			freqs = append(freqs, v)
		}

		fmt.Fprintf(c.out, "frequencies: %v, confirm? [y/n]: ", freqs)
		tok, err = c.token()
		if err != nil {
			return nil, err
		}
		c.tokens = nil

		switch strings.ToLower(tok) {
		case "y", "yes":
			return freqs, nil
		}
	}
}

// token returns the next whitespace-separated input token, reading more
// lines as needed
func (c *Controller) token() (string, error) {
	for len(c.tokens) == 0 {
		if !c.in.Scan() {
			if err := c.in.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		c.tokens = strings.Fields(c.in.Text())
	}

	tok := c.tokens[0]
	c.tokens = c.tokens[1:]
	return tok, nil
}
