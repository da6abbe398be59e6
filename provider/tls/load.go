/*
 TLS certificate loading

  Adapted from https://github.com/influxdata/telegraf/tree/master/plugins/common/tls
  All changes are made available under the original MIT License:

	The MIT License (MIT)

	Copyright (c) 2015-2020 InfluxData Inc.

	Permission is hereby granted, free of charge, to any person obtaining a copy
	of this software and associated documentation files (the "Software"), to deal
	in the Software without restriction, including without limitation the rights
	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
	copies of the Software, and to permit persons to whom the Software is
	furnished to do so, subject to the following conditions:

	The above copyright notice and this permission notice shall be included in all
	copies or substantial portions of the Software.

	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
	SOFTWARE.
*/

package tls

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/oddbit-project/roadwatch/crypt/secure"
	"github.com/oddbit-project/roadwatch/utils"
	"github.com/rs/zerolog/log"
	"go.step.sm/crypto/pemutil"
)

const (
	ErrCertNotFound    = utils.Error("could not load certificate file")
	ErrInvalidPEM      = utils.Error("could not parse PEM certificate")
	ErrKeyNotFound     = utils.Error("could not load private key file")
	ErrKeyError        = utils.Error("failed to decode private key")
	ErrCredentialError = utils.Error("failed to load tls key password")
	ErrMissingPassword = utils.Error("missing password for encrypted private key")
	ErrDecryptError    = utils.Error("private key decryption error")
	ErrInvalidCert     = utils.Error("failed to load cert/key pair")
)

// LoadTLSCertPool loads a certificate pool with the certificates from the specified files
func LoadTLSCertPool(certFiles []string) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	for _, certFile := range certFiles {
		cert, err := os.ReadFile(certFile)
		if err != nil {
			log.Error().Msgf("LoadTLSCertPool(): failed to read certFile '%s'; %v", certFile, err)
			return nil, ErrCertNotFound
		}
		if !pool.AppendCertsFromPEM(cert) {
			log.Error().Msgf("LoadTLSCertPool(): could not parse PEM certificate from '%s'", certFile)
			return nil, ErrInvalidPEM
		}
	}
	return pool, nil
}

// LoadTLSCertificate loads a TLS certificate and private key pair into config.
// If the private key is an encrypted PKCS#8 block, the password is fetched
// from pwdSrc and used to decrypt it.
func LoadTLSCertificate(config *tls.Config, certFile, keyFile string, pwdSrc secure.CredentialConfig) error {
	certBytes, err := os.ReadFile(certFile)
	if err != nil {
		log.Error().Msgf("LoadTLSCertificate(): failed to read certFile '%s'; %v", certFile, err)
		return ErrCertNotFound
	}

	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		log.Error().Msgf("LoadTLSCertificate(): failed to read keyFile '%s'; %v", keyFile, err)
		return ErrKeyNotFound
	}

	keyPEMBlock, _ := pem.Decode(keyBytes)
	if keyPEMBlock == nil {
		log.Error().Msg("LoadTLSCertificate(): failed to decode private key: no PEM data found")
		return ErrKeyError
	}

	var cert tls.Certificate

	if keyPEMBlock.Type == "ENCRYPTED PRIVATE KEY" {
		var password string
		if pwdSrc != nil {
			if password, err = pwdSrc.Fetch(); err != nil {
				log.Error().Msgf("LoadTLSCertificate(): failed to load key password; %v", err)
				return ErrCredentialError
			}
		}
		if password == "" {
			log.Error().Msgf("LoadTLSCertificate(): encrypted private key '%s', but no password supplied", keyFile)
			return ErrMissingPassword
		}

		passwordBytes := []byte(password)
		defer func() {
			// clear the password from memory after use
			for i := range passwordBytes {
				passwordBytes[i] = 0
			}
		}()

		rawDecryptedKey, err := pemutil.DecryptPKCS8PrivateKey(keyPEMBlock.Bytes, passwordBytes)
		if err != nil {
			log.Error().Msgf("LoadTLSCertificate(): failed to decrypt PKCS#8 private key: %v", err)
			return ErrDecryptError
		}

		decryptedKey, err := x509.ParsePKCS8PrivateKey(rawDecryptedKey)
		if err != nil {
			log.Error().Msgf("LoadTLSCertificate(): failed to parse decrypted PKCS#8 private key: %v", err)
			return ErrDecryptError
		}

		privateKey, ok := decryptedKey.(*rsa.PrivateKey)
		if !ok {
			log.Error().Msg("LoadTLSCertificate(): decrypted key is not a RSA private key")
			return ErrDecryptError
		}

		keyPEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
		})

		cert, err = tls.X509KeyPair(certBytes, keyPEM)
		// clear sensitive data
		for i := range keyPEM {
			keyPEM[i] = 0
		}

		if err != nil {
			log.Error().Msgf("LoadTLSCertificate(): failed to load cert/key pair: %v", err)
			return ErrInvalidCert
		}
	} else {
		cert, err = tls.X509KeyPair(certBytes, keyBytes)
		if err != nil {
			log.Error().Msgf("LoadTLSCertificate(): failed to load cert/key pair: %v", err)
			return ErrInvalidCert
		}
	}

	config.Certificates = []tls.Certificate{cert}
	return nil
}
