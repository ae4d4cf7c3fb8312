// ABOUTME: Entry point for the gradeportal CLI
// ABOUTME: Session management and interactive access to the University Grading Portal

package main

import (
	"os"

	"github.com/uniportal/gradeportal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
