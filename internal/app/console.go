package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"zooclient/internal/classify"
	"zooclient/internal/config"
	"zooclient/internal/decisiontree"
	"zooclient/internal/domain"
	"zooclient/internal/provider"
)

// runConsole is the interactive classification loop: fetch the next item,
// walk it through the decision tree, repeat.
func runConsole(store *provider.Provider, tree *decisiontree.Tree, cfg config.Config) error {
	return classifyLoop(store, tree, cfg, os.Stdin, os.Stdout)
}

func classifyLoop(store *provider.Provider, tree *decisiontree.Tree, cfg config.Config, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		items, err := store.QueryItems(provider.Ref{Kind: provider.RefItemNext}, provider.QueryOptions{})
		if err != nil {
			return fmt.Errorf("fetching next item: %w", err)
		}
		if len(items) == 0 {
			fmt.Fprintln(out, "No subjects available right now. Press enter to retry, or 'q' to quit.")
			if !scanner.Scan() || strings.TrimSpace(scanner.Text()) == "q" {
				return nil
			}
			continue
		}
		item := items[0]

		fmt.Fprintf(out, "\nSubject %s (%s)\n", item.ZooniverseID, item.SubjectID)
		if path := cachedImagePath(store, item.LocationStandard); path != "" {
			fmt.Fprintf(out, "Image: %s\n", path)
		}

		done, quit := classifyOne(store, tree, cfg, &item, scanner, out)
		if quit {
			return nil
		}
		if done {
			fmt.Fprintln(out, "Classification saved.")
		}
	}
}

// classifyOne walks a single item through the tree. It returns whether the
// classification completed, and whether the user asked to quit.
func classifyOne(store *provider.Provider, tree *decisiontree.Tree, cfg config.Config, item *domain.Item, scanner *bufio.Scanner, out io.Writer) (done, quit bool) {
	flow := classify.NewFlow(classify.FlowConfig{
		Tree:                tree,
		Saver:               store,
		Item:                provider.ItemRef(item.ID),
		ShowDiscussQuestion: cfg.ShowDiscussQuestion,
		OnDiscuss: func() {
			fmt.Fprintf(out, "Discuss this subject at the project's talk pages (subject %s).\n", item.ZooniverseID)
		},
	})
	defer flow.Wait()

	for {
		question := flow.CurrentQuestion()
		if question == nil {
			return true, false
		}

		printQuestion(out, question)
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return false, true
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "q":
			return false, true
		case "f":
			flow.SetFavorite(true)
			fmt.Fprintln(out, "Marked as favorite.")
			continue
		case "r":
			flow.Restart()
			fmt.Fprintln(out, "Classification restarted.")
			continue
		case "s":
			// Skip: purge the item so it is not offered again.
			if _, err := store.Delete(provider.ItemRef(item.ID)); err != nil {
				fmt.Fprintf(out, "Could not skip: %v\n", err)
			}
			return false, false
		}

		answerID, checkboxIDs, err := parseAnswer(question, input)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if err := flow.Answer(answerID, checkboxIDs); err != nil {
			fmt.Fprintln(out, err)
		}
	}
}

func printQuestion(out io.Writer, q *decisiontree.Question) {
	fmt.Fprintf(out, "\n%s\n", q.Text)
	for i, a := range q.Answers {
		fmt.Fprintf(out, "  %d) %s\n", i+1, a.Text)
	}
	if len(q.Checkboxes) > 0 {
		for i, c := range q.Checkboxes {
			fmt.Fprintf(out, "  %c) %s\n", 'a'+i, c.Text)
		}
		fmt.Fprintln(out, "Answer with the number, optionally followed by checkbox letters (e.g. '1 a c').")
	}
	fmt.Fprintln(out, "Commands: f=favorite, r=restart, s=skip subject, q=quit.")
}

// parseAnswer turns console input like "1 a c" into an answer id plus
// checkbox ids for the given question.
func parseAnswer(q *decisiontree.Question, input string) (string, []string, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("pick an answer between 1 and %d", len(q.Answers))
	}

	idx, err := strconv.Atoi(fields[0])
	if err != nil || idx < 1 || idx > len(q.Answers) {
		return "", nil, fmt.Errorf("pick an answer between 1 and %d", len(q.Answers))
	}
	answerID := q.Answers[idx-1].ID

	var checkboxIDs []string
	for _, field := range fields[1:] {
		if len(field) != 1 || field[0] < 'a' || int(field[0]-'a') >= len(q.Checkboxes) {
			return "", nil, fmt.Errorf("unknown checkbox %q", field)
		}
		checkboxIDs = append(checkboxIDs, q.Checkboxes[field[0]-'a'].ID)
	}
	return answerID, checkboxIDs, nil
}

// cachedImagePath resolves an item's local file ref to the image path on
// disk, or empty if it cannot be resolved.
func cachedImagePath(store *provider.Provider, fileRefStr string) string {
	ref, err := provider.ParseRef(fileRefStr)
	if err != nil {
		return ""
	}
	rec, err := store.QueryFile(ref)
	if err != nil {
		return ""
	}
	return rec.Path
}
