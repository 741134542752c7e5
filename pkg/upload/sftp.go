// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/sftp"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/ssh"
)

var (
	sftpAgentUp = prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
		Name: "sftp_agent_up",
		Help: "Status of SFTP agent connection",
	}, []string{"hostname"})
)

type SFTPTransferAgent struct {
	conn   *ssh.Client
	client *sftp.Client
	cfg    *config.SFTP
	logger log.Logger
	mu     sync.Mutex // protects all read/write methods
}

func newSFTPTransferAgent(logger log.Logger, cfg config.Upload) (*SFTPTransferAgent, error) {
	if cfg.SFTP == nil {
		return nil, errors.New("sftp: nil config")
	}
	agent := &SFTPTransferAgent{cfg: cfg.SFTP, logger: logger}

	if err := rejectOutboundIPRange(cfg.SplitAllowedIPs(), cfg.SFTP.Hostname); err != nil {
		return nil, fmt.Errorf("sftp: %s is not allowed: %v", cfg.SFTP.Hostname, err)
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()

	_, err := agent.connection()
	agent.record(err)

	return agent, err
}

// connection returns an sftp.Client which is connected to the remote server.
// This function will attempt to establish a new connection if none exists already.
//
// connection must be called within a mutex lock.
func (agent *SFTPTransferAgent) connection() (*sftp.Client, error) {
	if agent == nil || agent.cfg == nil {
		return nil, errors.New("nil agent / config")
	}

	if agent.client != nil {
		// Verify the connection works and if not drop through and reconnect
		if _, err := agent.client.Getwd(); err == nil {
			return agent.client, nil
		}
		agent.client.Close()
	}

	conn, err := sftpConnect(agent.logger, agent.cfg)
	if err != nil {
		return nil, fmt.Errorf("sftp: %v", err)
	}
	agent.conn = conn

	client, err := sftp.NewClient(conn)
	if err != nil {
		go conn.Close()
		return nil, fmt.Errorf("sftp: connect: %v", err)
	}
	agent.client = client

	return agent.client, nil
}

var (
	hostKeyCallbackOnce sync.Once
	hostKeyCallback     = func(logger log.Logger) {
		logger.Log("sftp", "WARNING!!! Insecure default of skipping SFTP host key validation. Please set upload.sftp.hostPublicKey")
	}
)

func sftpClientConfig(logger log.Logger, cfg *config.SFTP) (*ssh.ClientConfig, error) {
	conf := &ssh.ClientConfig{
		User:    cfg.Username,
		Timeout: cfg.Timeout(),
	}
	conf.SetDefaults()

	if cfg.HostPublicKey != "" {
		pubKey, err := readPubKey([]byte(cfg.HostPublicKey))
		if err != nil {
			return nil, fmt.Errorf("problem parsing ssh public key: %v", err)
		}
		conf.HostKeyCallback = ssh.FixedHostKey(pubKey)
	} else {
		hostKeyCallbackOnce.Do(func() {
			hostKeyCallback(logger)
		})
		conf.HostKeyCallback = ssh.InsecureIgnoreHostKey() // insecure default
	}
	switch {
	case cfg.GetPassword() != "":
		conf.Auth = append(conf.Auth, ssh.Password(cfg.GetPassword()))
	case cfg.ClientPrivateKey != "":
		signer, err := readSigner(cfg.ClientPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read client private key: %v", err)
		}
		conf.Auth = append(conf.Auth, ssh.PublicKeys(signer))
	default:
		return nil, fmt.Errorf("no auth method provided for %s", cfg.Hostname)
	}
	return conf, nil
}

func sftpConnect(logger log.Logger, cfg *config.SFTP) (*ssh.Client, error) {
	conf, err := sftpClientConfig(logger, cfg)
	if err != nil {
		return nil, err
	}

	var client *ssh.Client
	for i := 0; i < 3; i++ {
		client, err = ssh.Dial("tcp", cfg.Hostname, conf)
		if err == nil {
			return client, nil
		}
		time.Sleep(250 * time.Millisecond)
	}
	return nil, fmt.Errorf("dial %s: %v", cfg.Hostname, err)
}

func (agent *SFTPTransferAgent) Ping() error {
	if agent == nil {
		return errors.New("nil SFTPTransferAgent")
	}

	agent.mu.Lock()
	defer agent.mu.Unlock()

	conn, err := agent.connection()
	agent.record(err)
	if err != nil {
		return err
	}

	_, err = conn.ReadDir(".")
	agent.record(err)
	if err != nil {
		return fmt.Errorf("sftp: ping %v", err)
	}
	return nil
}

func (agent *SFTPTransferAgent) record(err error) {
	if agent == nil || agent.cfg == nil {
		return
	}
	if err != nil {
		sftpAgentUp.With("hostname", agent.cfg.Hostname).Set(0)
	} else {
		sftpAgentUp.With("hostname", agent.cfg.Hostname).Set(1)
	}
}

func (agent *SFTPTransferAgent) Close() error {
	if agent == nil {
		return nil
	}
	if agent.client != nil {
		agent.client.Close()
	}
	if agent.conn != nil {
		agent.conn.Close()
	}
	return nil
}

func (agent *SFTPTransferAgent) Hostname() string {
	host, _, err := net.SplitHostPort(agent.cfg.Hostname)
	if err != nil {
		return agent.cfg.Hostname
	}
	return host
}

func (agent *SFTPTransferAgent) Delete(path string) error {
	agent.mu.Lock()
	defer agent.mu.Unlock()

	conn, err := agent.connection()
	if err != nil {
		return err
	}

	info, err := conn.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("sftp: delete stat: %v", err)
	}
	if info != nil {
		if err := conn.Remove(path); err != nil {
			return fmt.Errorf("sftp: delete: %v", err)
		}
	}
	return nil
}

func (agent *SFTPTransferAgent) outboundDir(testMode bool) string {
	if testMode && agent.cfg.TestPath != "" {
		return agent.cfg.TestPath
	}
	return agent.cfg.OutboundPath
}

// UploadFile saves the content of File in the outbound directory, or the test
// directory for test mode uploads. The File's contents will always be closed.
func (agent *SFTPTransferAgent) UploadFile(_ context.Context, f File) (*Receipt, error) {
	defer f.Close()

	agent.mu.Lock()
	defer agent.mu.Unlock()

	conn, err := agent.connection()
	agent.record(err)
	if err != nil {
		return nil, err
	}

	dir := agent.outboundDir(f.TestMode)
	info, err := conn.Stat(dir)
	if info == nil || (err != nil && os.IsNotExist(err)) {
		if err := conn.MkdirAll(dir); err != nil {
			return nil, fmt.Errorf("sftp: problem creating parent dir %s: %v", dir, err)
		}
	}

	// Only the base of f.Filename is used so a name like '../../etc/passwd' stays inside dir.
	path := filepath.Join(dir, filepath.Base(f.Filename))
	fd, err := conn.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sftp: problem creating %s: %v", f.Filename, err)
	}
	n, err := io.Copy(fd, f.Contents)
	if n == 0 || err != nil {
		fd.Close()
		return nil, fmt.Errorf("sftp: problem copying (n=%d) %s: %v", n, f.Filename, err)
	}
	if err := fd.Close(); err != nil {
		return nil, fmt.Errorf("sftp: problem closing %s: %v", f.Filename, err)
	}
	if err := conn.Chmod(path, 0600); err != nil {
		return nil, fmt.Errorf("sftp: problem chmod %s: %v", f.Filename, err)
	}
	return &Receipt{Reference: path, Status: "uploaded"}, nil
}

func (agent *SFTPTransferAgent) GetReturnFiles(_ context.Context) ([]File, error) {
	return agent.readFiles(agent.cfg.ReturnPath)
}

func (agent *SFTPTransferAgent) readFiles(dir string) ([]File, error) {
	agent.mu.Lock()
	defer agent.mu.Unlock()

	conn, err := agent.connection()
	agent.record(err)
	if err != nil {
		return nil, err
	}

	infos, err := conn.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("sftp: readdir %s: %v", dir, err)
	}

	var files []File
	for i := range infos {
		// only read one level deep
		if infos[i].IsDir() {
			continue
		}
		path := filepath.Join(dir, infos[i].Name())
		fd, err := conn.Open(path)
		if err != nil {
			return nil, fmt.Errorf("sftp: open %s: %v", infos[i].Name(), err)
		}

		var buf bytes.Buffer
		n, err := io.Copy(&buf, fd)
		fd.Close()
		if err != nil && !strings.Contains(err.Error(), sftp.ErrInternalInconsistency.Error()) {
			return nil, fmt.Errorf("sftp: read (n=%d) %s: %v", n, infos[i].Name(), err)
		}
		if n == 0 {
			continue
		}
		files = append(files, File{
			Filename: path,
			Contents: ioutil.NopCloser(&buf),
		})
	}
	return files, nil
}
