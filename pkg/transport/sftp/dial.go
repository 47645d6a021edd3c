package sftp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/dittodocs/internal/logger"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config contains the connection parameters of an SFTP server.
type Config struct {
	// Host and Port of the SSH server
	Host string `mapstructure:"host" validate:"required"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`

	// User to authenticate as
	User string `mapstructure:"user" validate:"required"`

	// Password authentication (optional when a private key is set)
	Password string `mapstructure:"password"`

	// PrivateKey is a PEM encoded key, PrivateKeyPath a file holding one
	PrivateKey     string `mapstructure:"private_key"`
	PrivateKeyPath string `mapstructure:"private_key_path"`

	// Passphrase decrypts an encrypted private key
	Passphrase string `mapstructure:"passphrase"`

	// KnownHostsPath is an OpenSSH known_hosts file used to verify the
	// server key
	KnownHostsPath string `mapstructure:"known_hosts_path"`

	// InsecureIgnoreHostKey disables host key verification (testing only)
	InsecureIgnoreHostKey bool `mapstructure:"insecure_ignore_host_key"`

	// BasePath is the remote directory holding every document
	BasePath string `mapstructure:"base_path"`

	// DialTimeout bounds TCP connect and SSH handshake (default: 10s)
	DialTimeout time.Duration `mapstructure:"dial_timeout"`

	// MaxPacket is the SFTP packet size (default: pkg/sftp default)
	MaxPacket int `mapstructure:"max_packet" validate:"omitempty,min=512"`
}

// Dial opens a new SFTP session: TCP connect, SSH handshake, SFTP
// subsystem.
//
// Context Cancellation:
// The context bounds the whole dial, handshake included.
func Dial(ctx context.Context, cfg Config) (*SFTPTransport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sshConfig, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))

	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	// The SSH handshake has no context: bound it with a deadline on the
	// raw connection.
	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	sshClient := ssh.NewClient(sshConn, chans, reqs)

	var opts []sftp.ClientOption
	if cfg.MaxPacket > 0 {
		opts = append(opts, sftp.MaxPacket(cfg.MaxPacket))
	}

	client, err := sftp.NewClient(sshClient, opts...)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem on %s: %w", addr, err)
	}

	logger.Debug("SFTP session opened: addr=%s user=%s base=%q", addr, cfg.User, cfg.BasePath)
	return New(client, sshClient, cfg.BasePath), nil
}

// clientConfig builds the SSH client configuration: auth methods and host
// key verification.
func clientConfig(cfg Config) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	key := []byte(cfg.PrivateKey)
	if len(key) == 0 && cfg.PrivateKeyPath != "" {
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		key = data
	}
	if len(key) > 0 {
		signer, err := parseKey(key, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("sftp: no authentication method configured (password or private key)")
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case cfg.KnownHostsPath != "":
		cb, err := knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	case cfg.InsecureIgnoreHostKey:
		logger.Warn("SFTP host key verification disabled")
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	default:
		return nil, errors.New("sftp: host key verification requires known_hosts_path or insecure_ignore_host_key")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
	}, nil
}

func parseKey(pem []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		signer, err := ssh.ParsePrivateKeyWithPassphrase(pem, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to parse encrypted private key: %w", err)
		}
		return signer, nil
	}

	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return signer, nil
}
