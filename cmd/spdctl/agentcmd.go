package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/mscrnt/spdtool/internal/agentcert"
	"github.com/mscrnt/spdtool/internal/agentd"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/wire"
	"github.com/spf13/cobra"
)

func agentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run or talk to the remote programmer-agent daemon",
		Long:  "Expose a local programmer session over mTLS HTTPS, or drive one remotely.",
	}
	cmd.AddCommand(agentServeCmd())
	cmd.AddCommand(agentScanCmd())
	cmd.AddCommand(agentReadCmd())
	cmd.AddCommand(agentWriteCmd())
	cmd.AddCommand(agentRswpCmd())
	cmd.AddCommand(agentPswpCmd())
	cmd.AddCommand(agentCertCmd())
	cmd.AddCommand(agentDefaultsCmd())
	return cmd
}

func agentDefaultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Show or set persisted operator defaults (serial port, address, SMBus adapter)",
	}
	cmd.AddCommand(agentDefaultsShowCmd())
	cmd.AddCommand(agentDefaultsSetCmd())
	return cmd
}

func agentDefaultsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the persisted operator defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := loadDefaults()
			fmt.Printf("serial_port = %q\n", d.SerialPort)
			fmt.Printf("default_address = 0x%02X\n", d.DefaultAddress)
			fmt.Printf("smbus_adapter_index = %d\n", d.SMBusAdapterIndex)
			return nil
		},
	}
}

func agentDefaultsSetCmd() *cobra.Command {
	var serialPort, addrHex string
	var smbusIndex int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Save persisted operator defaults, merging with any already saved",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := loadDefaults()
			if serialPort != "" {
				d.SerialPort = serialPort
			}
			if addrHex != "" {
				addr, err := strconv.ParseUint(trimHex(addrHex), 16, 8)
				if err != nil {
					return fmt.Errorf("invalid --addr %q: %w", addrHex, err)
				}
				d.DefaultAddress = byte(addr)
			}
			if smbusIndex >= 0 {
				d.SMBusAdapterIndex = smbusIndex
			}
			if err := agentd.SaveDefaults(getDefaultsPath(), d); err != nil {
				return fmt.Errorf("save defaults: %w", err)
			}
			fmt.Printf("defaults saved to %s\n", getDefaultsPath())
			return nil
		},
	}
	cmd.Flags().StringVar(&serialPort, "serial", "", "default serial port")
	cmd.Flags().StringVar(&addrHex, "addr", "", "default I2C address, hex")
	cmd.Flags().IntVar(&smbusIndex, "smbus", -1, "default SMBus adapter index")
	return cmd
}

func agentServeCmd() *cobra.Command {
	var (
		port     int
		certFile string
		keyFile  string
		caFile   string
		logFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent daemon against the local programmer",
		Long: `Start the spdctl agent daemon with mTLS authentication, serving one
held serial programmer session over HTTPS.

Examples:
  spdctl agent serve --serial /dev/ttyUSB0 --cert server.pem --key server.key --ca ca.pem
  spdctl agent serve --serial /dev/ttyUSB0 --port 8443 --log agentd.log --cert server.pem --key server.key --ca ca.pem`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transportSerial == "" {
				transportSerial = loadDefaults().SerialPort
			}
			if transportSerial == "" {
				return fmt.Errorf("agent serve requires --serial: the daemon holds one programmer session")
			}
			t, err := wire.OpenSerial(transportSerial, 115200)
			if err != nil {
				return fmt.Errorf("open serial %s: %w", transportSerial, err)
			}
			sess, err := programmer.Open(t, transportSerial, log.Default())
			if err != nil {
				return fmt.Errorf("open programmer session: %w", err)
			}
			defer func() { _ = sess.Close() }()

			h, err := openHistoryStore()
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer func() { _ = h.Close() }()

			config := agentd.Config{Port: port, CertFile: certFile, KeyFile: keyFile, CAFile: caFile, LogFile: logFile}
			server, err := agentd.NewServer(config, sess, transportSerial, h)
			if err != nil {
				return fmt.Errorf("create agent server: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			errChan := make(chan error, 1)
			go func() { errChan <- server.Start() }()

			fmt.Printf("agent daemon started on port %d with mTLS, serving %s\n", port, transportSerial)
			fmt.Println("press Ctrl+C to stop...")

			select {
			case sig := <-sigChan:
				fmt.Printf("received signal: %v\n", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(ctx)
			case err := <-errChan:
				return fmt.Errorf("server error: %w", err)
			}
		},
	}
	cmd.Flags().IntVar(&port, "port", 8443, "port to listen on")
	cmd.Flags().StringVar(&certFile, "cert", "", "server certificate file (required)")
	cmd.Flags().StringVar(&keyFile, "key", "", "server private key file (required)")
	cmd.Flags().StringVar(&caFile, "ca", "", "CA certificate file for client verification (required)")
	cmd.Flags().StringVar(&logFile, "log", "", "log file path (optional)")
	return cmd
}

func agentClientFlags(cmd *cobra.Command) (*string, *int, *string, *string, *string) {
	var host, cert, key, ca string
	var port int
	cmd.Flags().StringVar(&host, "host", "localhost", "agent daemon host")
	cmd.Flags().IntVar(&port, "port", 8443, "agent daemon port")
	cmd.Flags().StringVar(&cert, "cert", "", "client certificate file (required)")
	cmd.Flags().StringVar(&key, "key", "", "client private key file (required)")
	cmd.Flags().StringVar(&ca, "ca", "", "CA certificate file for server verification (required)")
	return &host, &port, &cert, &key, &ca
}

func agentScanCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "scan", Short: "Scan the bus through a remote agent daemon"}
	host, port, cert, key, ca := agentClientFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client, err := agentd.NewClient(agentd.ClientConfig{Host: *host, Port: *port, CertFile: *cert, KeyFile: *key, CAFile: *ca})
		if err != nil {
			return err
		}
		addrs, err := client.Scan()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		for _, a := range addrs {
			fmt.Println(a)
		}
		return nil
	}
	return cmd
}

func agentReadCmd() *cobra.Command {
	var offset uint16
	var length int
	cmd := &cobra.Command{Use: "read", Short: "Read bytes through a remote agent daemon"}
	host, port, cert, key, ca := agentClientFlags(cmd)
	cmd.Flags().Uint16Var(&offset, "offset", 0, "byte offset")
	cmd.Flags().IntVar(&length, "length", 512, "number of bytes")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddrFlag()
		if err != nil {
			return err
		}
		client, err := agentd.NewClient(agentd.ClientConfig{Host: *host, Port: *port, CertFile: *cert, KeyFile: *key, CAFile: *ca})
		if err != nil {
			return err
		}
		data, err := client.Read(addr, offset, length)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("%x\n", data)
		return nil
	}
	return cmd
}

func agentWriteCmd() *cobra.Command {
	var offset uint16
	var valueHex string
	cmd := &cobra.Command{Use: "write", Short: "Write a byte through a remote agent daemon"}
	host, port, cert, key, ca := agentClientFlags(cmd)
	cmd.Flags().Uint16Var(&offset, "offset", 0, "byte offset")
	cmd.Flags().StringVar(&valueHex, "value", "", "byte value, hex (required)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddrFlag()
		if err != nil {
			return err
		}
		value, err := strconv.ParseUint(trimHex(valueHex), 16, 8)
		if err != nil {
			return fmt.Errorf("invalid --value %q: %w", valueHex, err)
		}
		client, err := agentd.NewClient(agentd.ClientConfig{Host: *host, Port: *port, CertFile: *cert, KeyFile: *key, CAFile: *ca})
		if err != nil {
			return err
		}
		if err := client.Write(addr, offset, byte(value)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		fmt.Println("write ok")
		return nil
	}
	return cmd
}

func agentRswpCmd() *cobra.Command {
	var block int
	var state string
	cmd := &cobra.Command{Use: "rswp", Short: "Control reversible software write-protect through a remote agent daemon"}
	host, port, cert, key, ca := agentClientFlags(cmd)
	cmd.Flags().IntVar(&block, "block", 0, "protected block index")
	cmd.Flags().StringVar(&state, "state", "query", "enable, disable, or query")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		client, err := agentd.NewClient(agentd.ClientConfig{Host: *host, Port: *port, CertFile: *cert, KeyFile: *key, CAFile: *ca})
		if err != nil {
			return err
		}
		got, err := client.RSWP(block, state)
		if err != nil {
			return fmt.Errorf("rswp: %w", err)
		}
		fmt.Println(got)
		return nil
	}
	return cmd
}

func agentPswpCmd() *cobra.Command {
	var state string
	cmd := &cobra.Command{Use: "pswp", Short: "Control permanent software write-protect through a remote agent daemon"}
	host, port, cert, key, ca := agentClientFlags(cmd)
	cmd.Flags().StringVar(&state, "state", "query", "enable or query (disable is not possible once set)")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddrFlag()
		if err != nil {
			return err
		}
		client, err := agentd.NewClient(agentd.ClientConfig{Host: *host, Port: *port, CertFile: *cert, KeyFile: *key, CAFile: *ca})
		if err != nil {
			return err
		}
		got, err := client.PSWP(addr, state)
		if err != nil {
			return fmt.Errorf("pswp: %w", err)
		}
		fmt.Println(got)
		return nil
	}
	return cmd
}

func agentCertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Issue a CA and mTLS leaf certificates for the agent daemon",
	}
	cmd.AddCommand(agentCertInitCmd())
	cmd.AddCommand(agentCertIssueCmd())
	return cmd
}

func defaultCAPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".spdctl", "ca"), nil
}

func agentCertInitCmd() *cobra.Command {
	var caPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the agent's certificate authority",
		RunE: func(cmd *cobra.Command, args []string) error {
			if caPath == "" {
				p, err := defaultCAPath()
				if err != nil {
					return err
				}
				caPath = p
			}
			if err := os.MkdirAll(caPath, 0o700); err != nil {
				return fmt.Errorf("create CA directory: %w", err)
			}
			certPath := filepath.Join(caPath, "ca.pem")
			keyPath := filepath.Join(caPath, "ca-key.pem")
			if !force {
				if _, err := os.Stat(certPath); err == nil {
					return fmt.Errorf("CA certificate already exists at %s (use --force to overwrite)", certPath)
				}
			}
			issuer, err := agentcert.NewIssuer("spdctl agent CA")
			if err != nil {
				return fmt.Errorf("create CA: %w", err)
			}
			if err := issuer.SaveCA(certPath, keyPath); err != nil {
				return fmt.Errorf("save CA: %w", err)
			}
			fmt.Println("certificate authority initialized")
			fmt.Printf("CA certificate: %s\n", certPath)
			fmt.Printf("CA private key: %s\n", keyPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&caPath, "ca-path", "", "directory to store the CA in (default ~/.spdctl/ca)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing CA")
	return cmd
}

func agentCertIssueCmd() *cobra.Command {
	var caPath, commonName, outDir string
	var server bool
	var hosts []string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a server or client leaf certificate signed by the agent's CA",
		RunE: func(cmd *cobra.Command, args []string) error {
			if caPath == "" {
				p, err := defaultCAPath()
				if err != nil {
					return err
				}
				caPath = p
			}
			issuer, err := agentcert.LoadIssuer(filepath.Join(caPath, "ca.pem"), filepath.Join(caPath, "ca-key.pem"))
			if err != nil {
				return fmt.Errorf("load CA: %w", err)
			}
			var leaf *agentcert.Leaf
			if server {
				leaf, err = issuer.IssueServerLeaf(commonName, hosts)
			} else {
				leaf, err = issuer.IssueClientLeaf(commonName)
			}
			if err != nil {
				return fmt.Errorf("issue leaf: %w", err)
			}
			if outDir == "" {
				outDir = "."
			}
			certPath := filepath.Join(outDir, commonName+".pem")
			keyPath := filepath.Join(outDir, commonName+"-key.pem")
			if err := leaf.Save(certPath, keyPath); err != nil {
				return fmt.Errorf("save leaf: %w", err)
			}
			fmt.Printf("certificate: %s\n", certPath)
			fmt.Printf("private key: %s\n", keyPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&caPath, "ca-path", "", "directory the CA is stored in (default ~/.spdctl/ca)")
	cmd.Flags().StringVar(&commonName, "cn", "", "common name for the leaf certificate (required)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to write the leaf cert/key to")
	cmd.Flags().BoolVar(&server, "server", false, "issue a server-auth leaf instead of a client-auth leaf")
	cmd.Flags().StringSliceVar(&hosts, "host", nil, "DNS name or IP the server leaf should be valid for (repeatable)")
	return cmd
}
