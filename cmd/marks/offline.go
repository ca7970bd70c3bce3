package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/search"
)

func defaultDatastore() string {
	if p := os.Getenv("MARKS_DATASTORE_FILE"); p != "" {
		return p
	}
	return "bookmarks.yaml"
}

func addDatastoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", defaultDatastore(), "Datastore file to read")
	cmd.Flags().String("visibility", "all", "all, public or private")
	cmd.Flags().Bool("private", false, "Show private bookmarks and hidden tags")
	cmd.Flags().String("sep", domain.DefaultTagSeparator, "Tag separator")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
}

// openEngine loads the datastore once and binds an engine to it.
func openEngine(cmd *cobra.Command) (*search.Engine, error) {
	path, _ := cmd.Flags().GetString("file")
	sep, _ := cmd.Flags().GetString("sep")

	bookmarks, err := datastore.New(path, time.Second, logger.Nop()).Load()
	if err != nil {
		return nil, err
	}
	coll := search.Slice(bookmarks)
	return search.NewEngine(func() search.Collection { return coll }, sep, search.DefaultPerPage), nil
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a datastore file without running the server",
		RunE:  runSearch,
	}
	addDatastoreFlags(cmd)
	cmd.Flags().String("tags", "", `Tag query, e.g. "go -draft web*"`)
	cmd.Flags().String("term", "", `Full-text query, e.g. "\"exact phrase\" -spam"`)
	cmd.Flags().Bool("untagged", false, "Only bookmarks without tags")
	cmd.Flags().Bool("case-sensitive", false, "Match tags case-sensitively")
	cmd.Flags().Int("page", 1, "Page number")
	cmd.Flags().String("limit", strconv.Itoa(search.DefaultPerPage), `Page size or "all"`)
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	rawVis, _ := f.GetString("visibility")
	v, err := search.ParseVisibility(rawVis)
	if err != nil {
		return err
	}
	tags, _ := f.GetString("tags")
	term, _ := f.GetString("term")
	private, _ := f.GetBool("private")
	untagged, _ := f.GetBool("untagged")
	caseSensitive, _ := f.GetBool("case-sensitive")
	page, _ := f.GetInt("page")
	rawLimit, _ := f.GetString("limit")

	perPage := search.DefaultPerPage
	if strings.EqualFold(rawLimit, "all") {
		perPage = search.PerPageAll
	} else if n, err := strconv.Atoi(rawLimit); err == nil && n > 0 {
		perPage = n
	}

	res, err := engine.Search(search.Criteria{
		SearchTags:    tags,
		SearchTerms:   term,
		Visibility:    v,
		UntaggedOnly:  untagged,
		CaseSensitive: caseSensitive,
		Authenticated: private,
		Pagination:    search.Pagination{Page: page, PerPage: perPage},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := f.GetBool("json"); asJSON {
		return printJSON(out, res)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSHORTID\tCREATED\tTITLE\tTAGS\tURL")
	for _, b := range res.Bookmarks {
		title := b.Title
		if b.Sticky {
			title = "📌 " + title
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.ShortID, b.Created.Format("2006-01-02"), title, b.TagsString(engine.TagSeparator()), b.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "\n%d result(s), page %d/%d\n", res.TotalCount, res.Page, res.LastPage)
	return err
}

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Count tags in a datastore file",
		RunE:  runTags,
	}
	addDatastoreFlags(cmd)
	cmd.Flags().String("filter", "", "Only count bookmarks carrying all of these tags")
	cmd.Flags().String("sort", "usage", "usage or alpha")
	return cmd
}

func runTags(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(cmd)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	rawVis, _ := f.GetString("visibility")
	v, err := search.ParseVisibility(rawVis)
	if err != nil {
		return err
	}
	private, _ := f.GetBool("private")
	filter, _ := f.GetString("filter")
	order, _ := f.GetString("sort")

	opts := search.AggregateOptions{
		FilterTags:    domain.SplitTags(filter, engine.TagSeparator()),
		Visibility:    v,
		Authenticated: private,
	}

	var counts []search.TagCount
	switch order {
	case "usage":
		counts = engine.CountPerTag(opts)
	case "alpha":
		counts = engine.ListTags(opts)
	default:
		return &search.QueryError{Field: "sort", Value: order, Reason: "expected usage or alpha"}
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := f.GetBool("json"); asJSON {
		return printJSON(out, counts)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%d\n", c.Tag, c.Count)
	}
	return w.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
