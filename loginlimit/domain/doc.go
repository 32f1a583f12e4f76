// Package domain define contratos e tipos de domínio do limitador de login.
//
// Este pacote não depende de net/http nem de Redis. Identidade, política,
// registros de tentativa/bloqueio e as decisões vivem aqui, para que o motor
// de decisão possa ser testado com stores falsos.
package domain
