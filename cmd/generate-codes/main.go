package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// rootCmd mints registration codes without touching a database. The
// plaintext codes are printed exactly once alongside ready-to-paste
// INSERT statements that provision their hashes.
var rootCmd = &cobra.Command{
	Use:   "generate-codes <role> <count>",
	Short: "Mint registration codes for worker or admin signup",
	Long: `Generates single-use registration codes for the given role and prints
the plaintext codes together with the INSERT statements that store their
hashes. Run the statements against the database to provision the codes;
hand the plaintexts to the people you are inviting.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("count must be a number, got %q", args[1])
		}
		return generateCodes(cmd.OutOrStdout(), args[0], count)
	},
}

func generateCodes(out io.Writer, role string, count int) error {
	role = models.NormalizeRole(role)
	if role != models.RoleWorker && role != models.RoleAdmin {
		return fmt.Errorf("registration codes can only be generated for worker or admin roles")
	}
	if count < 1 || count > services.MaxOutstandingCodes {
		return fmt.Errorf("count must be between 1 and %d", services.MaxOutstandingCodes)
	}

	fmt.Fprintf(out, "Generated %d %s registration code(s):\n\n", count, role)
	inserts := make([]string, 0, count)
	for i := 0; i < count; i++ {
		plain, err := services.GeneratePlainCode()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s\n", plain)
		inserts = append(inserts, fmt.Sprintf(
			"INSERT INTO registration_codes (code_hash, role, used, created_at) VALUES ('%s', '%s', false, NOW());",
			services.HashCode(plain), role))
	}

	fmt.Fprintln(out, "\nRun against the database to provision them:")
	fmt.Fprintln(out)
	for _, stmt := range inserts {
		fmt.Fprintln(out, stmt)
	}
	fmt.Fprintln(out, "\nThe plaintext codes are shown once and cannot be recovered. Store them safely.")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
