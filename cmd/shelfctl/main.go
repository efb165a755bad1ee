package main

import (
	"fmt"
	"os"
	"sort"

	"skyshelf/client"
	"skyshelf/models"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newClient builds an API client from the environment. SKYSHELF_HOST
// defaults to a local server; SKYSHELF_API_KEY is required for
// anything beyond public reads.
func newClient() *client.Client {
	host := os.Getenv("SKYSHELF_HOST")
	if host == "" {
		host = "http://localhost:8080"
	}
	return client.New(host, os.Getenv("SKYSHELF_API_KEY"))
}

func newCache() (*client.Cache, error) {
	dir := os.Getenv("SKYSHELF_CACHE_DIR")
	if dir == "" {
		var err error
		dir, err = client.DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}
	return client.NewCache(dir)
}

func printTree(tree *client.ProductTree) {
	if tree.Current != nil {
		fmt.Printf("Current version: %s\n", *tree.Current)
	}
	fmt.Printf("Requested version: %s\n\n", tree.Requested)

	versions := make([]string, 0, len(tree.Versions))
	for v := range tree.Versions {
		versions = append(versions, v)
	}
	sort.Strings(versions)

	for _, v := range versions {
		snapshot := tree.Versions[v]
		fmt.Printf("%s  %s (%s)\n", v, snapshot.Name, snapshot.ID.Hex())
		for _, source := range snapshot.Sources {
			fmt.Printf("    %s  %d bytes  %s\n", source.Name, source.Size, source.UUID)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "shelfctl",
	Short: "Command line client for the skyshelf data catalog",
}

// product commands
var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage products",
}

var productReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Show a product and its version history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tree, err := newClient().ReadProductTree(args[0])
		if err != nil {
			return err
		}
		printTree(tree)
		return nil
	},
}

var productSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search products by name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		products, err := newClient().SearchProducts(args[0])
		if err != nil {
			return err
		}
		if len(products) == 0 {
			fmt.Println("No products found.")
			return nil
		}
		for _, p := range products {
			fmt.Printf("%s  %s  v%s  [%s]\n", p.ID.Hex(), p.Name, p.Version, p.Visibility)
		}
		return nil
	},
}

var productDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a product version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := cmd.Flags().GetBool("data")
		tree, _ := cmd.Flags().GetBool("tree")

		c := newClient()
		var err error
		if tree {
			err = c.DeleteProductTree(args[0], data)
		} else {
			err = c.DeleteProduct(args[0], data)
		}
		if err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	},
}

var productVisibilityCmd = &cobra.Command{
	Use:   "set-visibility ID LEVEL",
	Short: "Change a product's visibility (public, collaboration, private)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		visibility := models.Visibility(args[1])
		if !visibility.Valid() {
			return fmt.Errorf("invalid visibility %q", args[1])
		}
		if err := newClient().SetVisibility(args[0], visibility); err != nil {
			return err
		}
		fmt.Printf("Visibility of %s set to %s\n", args[0], visibility)
		return nil
	},
}

var productCacheCmd = &cobra.Command{
	Use:   "cache ID",
	Short: "Download a product's files into the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}

		files, err := newClient().ReadProductFiles(args[0])
		if err != nil {
			return err
		}

		for _, file := range files {
			if !file.Available {
				fmt.Printf("skipped  %s (not yet uploaded)\n", file.Name)
				continue
			}
			path, err := cache.Fetch(file)
			if err != nil {
				return err
			}
			fmt.Printf("cached   %s -> %s\n", file.Name, path)
		}
		return nil
	},
}

var productUncacheCmd = &cobra.Command{
	Use:   "uncache ID",
	Short: "Evict a product's files from the local cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}

		files, err := newClient().ReadProductFiles(args[0])
		if err != nil {
			return err
		}

		for _, file := range files {
			if err := cache.Remove(file.UUID); err != nil {
				return err
			}
		}
		fmt.Println("Evicted.")
		return nil
	},
}

// collection commands
var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Show a collection and its visible members",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collection, err := newClient().ReadCollection(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s (%s)\n%s\n\n", collection.Name, collection.ID.Hex(), collection.Description)
		if len(collection.Products) == 0 {
			fmt.Println("No visible products.")
			return nil
		}
		for _, p := range collection.Products {
			fmt.Printf("%s  %s  v%s\n", p.ID.Hex(), p.Name, p.Version)
		}
		return nil
	},
}

var collectionSearchCmd = &cobra.Command{
	Use:   "search TEXT",
	Short: "Search collections by name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		collections, err := newClient().SearchCollections(args[0])
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			fmt.Println("No collections found.")
			return nil
		}
		for _, collection := range collections {
			fmt.Printf("%s  %s\n", collection.ID.Hex(), collection.Name)
		}
		return nil
	},
}

// cache commands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local file cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}
		if err := cache.Clear(); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	productDeleteCmd.Flags().Bool("data", false, "also delete files from the object store")
	productDeleteCmd.Flags().Bool("tree", false, "delete the whole version chain")

	productCmd.AddCommand(productReadCmd)
	productCmd.AddCommand(productSearchCmd)
	productCmd.AddCommand(productDeleteCmd)
	productCmd.AddCommand(productVisibilityCmd)
	productCmd.AddCommand(productCacheCmd)
	productCmd.AddCommand(productUncacheCmd)

	collectionCmd.AddCommand(collectionReadCmd)
	collectionCmd.AddCommand(collectionSearchCmd)

	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(cacheCmd)
}
