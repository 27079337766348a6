package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"secsock/internal/common/pprint"
	"secsock/internal/securesock"
)

func newCertgenCommand(c *Cmd) *cobra.Command {
	certgen := &cobra.Command{
		Use:     "certgen [flags]",
		Short:   "Generate a self-signed TLS key pair",
		Example: "  secsock certgen --cn secsock.local -o server.crt -k server.key",
		RunE:    c.runCertgen,
	}
	certgen.Flags().StringVar(&c.CommonName, "cn", "127.0.0.1", "certificate common name")
	certgen.Flags().StringVarP(&c.CertOut, "cert-out", "o", "server.crt", "certificate output path")
	certgen.Flags().StringVarP(&c.KeyOut, "key-out", "k", "server.key", "key output path")

	return certgen
}

func (c *Cmd) runCertgen(cmd *cobra.Command, args []string) error {
	fingerprint, err := securesock.WriteKeyPair(c.CommonName, c.CertOut, c.KeyOut)
	if err != nil {
		fmt.Println(pprint.Error("Failed to generate key pair: %v", err))
		return err
	}

	fmt.Println(pprint.Success("Certificate written to %s", c.CertOut))
	fmt.Println(pprint.Success("Key written to %s", c.KeyOut))
	fmt.Println(pprint.Info("Fingerprint: %s", fingerprint))
	return nil
}
