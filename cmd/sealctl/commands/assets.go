package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ygzhang/sealkit/raster"
	"github.com/ygzhang/sealkit/stamp"
	"github.com/ygzhang/sealkit/store"
)

var (
	assetsDB        string
	assetsKind      string
	assetsFavsFirst bool
	assetsName      string
	assetsAddKind   string
	assetsAddRefine bool
	assetsFavOff    bool
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Manage the stamp and signature library",
	Long: `The asset library is a SQLite database holding refined stamps and
signatures. Its path comes from --db, the SEALKIT_DB environment
variable, or sealkit.db in the working directory.`,
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored assets",
	Args:  cobra.NoArgs,
	RunE:  runAssetsList,
}

var assetsAddCmd = &cobra.Command{
	Use:   "add <image>",
	Short: "Add an image to the library",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsAdd,
}

var assetsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an asset",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsRm,
}

var assetsFavCmd = &cobra.Command{
	Use:   "fav <id>",
	Short: "Mark an asset as favorite",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsFav,
}

var assetsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename an asset",
	Args:  cobra.ExactArgs(2),
	RunE:  runAssetsRename,
}

func init() {
	assetsCmd.PersistentFlags().StringVar(&assetsDB, "db", "", "asset database path")
	assetsListCmd.Flags().StringVar(&assetsKind, "kind", "", "filter by kind (stamp|signature)")
	assetsListCmd.Flags().BoolVar(&assetsFavsFirst, "favorites-first", false, "sort favorites to the top")
	assetsAddCmd.Flags().StringVar(&assetsName, "name", "", "display name (default: file name)")
	assetsAddCmd.Flags().StringVar(&assetsAddKind, "kind", "stamp", "asset kind (stamp|signature)")
	assetsAddCmd.Flags().BoolVar(&assetsAddRefine, "refine", false, "refine the image before storing")
	assetsFavCmd.Flags().BoolVar(&assetsFavOff, "off", false, "clear the favorite flag instead")

	assetsCmd.AddCommand(assetsListCmd, assetsAddCmd, assetsRmCmd, assetsFavCmd, assetsRenameCmd)
	rootCmd.AddCommand(assetsCmd)
}

func openStore() (*store.Store, error) {
	path := assetsDB
	if path == "" {
		path = os.Getenv("SEALKIT_DB")
	}
	if path == "" {
		path = "sealkit.db"
	}
	return store.Open(path)
}

func parseKind(s string) (store.Kind, error) {
	switch store.Kind(s) {
	case store.KindStamp, store.KindSignature:
		return store.Kind(s), nil
	case "":
		return "", nil
	default:
		return "", fmt.Errorf("unknown kind %q, want stamp or signature", s)
	}
}

func runAssetsList(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(assetsKind)
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.List(cmd.Context(), store.ListOptions{Kind: kind, FavoritesFirst: assetsFavsFirst})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tFAV\tSIZE\tCREATED\tLAST USED")
	for _, r := range recs {
		fav := ""
		if r.Favorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Name, r.Kind, fav, len(r.Data),
			r.CreatedAt.Format("2006-01-02"), r.LastUsedAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func runAssetsAdd(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(assetsAddKind)
	if err != nil {
		return err
	}
	if kind == "" {
		kind = store.KindStamp
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if assetsAddRefine {
		img, err := raster.DecodeBytes(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		refined, err := stamp.Refine(img)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if data, err = raster.EncodePNGBytes(refined); err != nil {
			return err
		}
	}

	name := assetsName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.Save(cmd.Context(), &store.AssetRecord{Name: name, Kind: kind, Data: data})
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runAssetsRm(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id: %w", err)
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Delete(cmd.Context(), id)
}

func runAssetsFav(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id: %w", err)
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SetFavorite(cmd.Context(), id, !assetsFavOff)
}

func runAssetsRename(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid asset id: %w", err)
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Rename(cmd.Context(), id, args[1])
}
