package converter

import (
	"context"
	"hash/crc32"
)

// Dummy is an offline converter that returns canned LaTeX fragments.
// Useful for exercising the pipeline without an API key or network access.
// The variant is derived from the image content, so identical input always
// produces identical output.
type Dummy struct{}

// NewDummy creates the offline test converter
func NewDummy() *Dummy {
	return &Dummy{}
}

// Name identifies the converter implementation
func (d *Dummy) Name() string {
	return "dummy"
}

// Convert returns a deterministic lorem-ipsum LaTeX fragment
func (d *Dummy) Convert(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	variant := int(crc32.ChecksumIEEE(image)) % len(loremVariants)
	if variant < 0 {
		variant += len(loremVariants)
	}
	return loremVariants[variant], nil
}

var loremVariants = []string{
	`\subsection{Lorem Ipsum Dolor}

Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.

\begin{equation}
    E = mc^2
\end{equation}

Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris.

\begin{align}
    a^2 + b^2 &= c^2 \\
    x &= \frac{-b \pm \sqrt{b^2 - 4ac}}{2a}
\end{align}`,
	`\subsection{Mathematical Expressions}

Consider the following integral:

\begin{equation}
    \int_{0}^{\infty} e^{-x^2} dx = \frac{\sqrt{\pi}}{2}
\end{equation}

\begin{itemize}
    \item First principle: $f(x) = x^2 + 2x + 1$
    \item Second principle: $\nabla \cdot \vec{E} = \frac{\rho}{\epsilon_0}$
\end{itemize}`,
	`\subsection{Theoretical Framework}

\begin{equation}
    \sum_{k=1}^{n} k = \frac{n(n+1)}{2}
\end{equation}

The matrix representation is given by:

\begin{equation}
    \mathbf{A} = \begin{pmatrix}
        a_{11} & a_{12} \\
        a_{21} & a_{22}
    \end{pmatrix}
\end{equation}`,
	`\subsection{Advanced Concepts}

Let $X$ be a random variable with probability density function:

\begin{equation}
    f_X(x) = \frac{1}{\sigma\sqrt{2\pi}} e^{-\frac{(x-\mu)^2}{2\sigma^2}}
\end{equation}

\begin{enumerate}
    \item Property 1: $\mathbb{E}[X] = \mu$
    \item Property 2: $\text{Var}(X) = \sigma^2$
\end{enumerate}`,
	`\subsection{Derivations and Results}

The fundamental theorem states:

\begin{equation}
    \int_a^b f'(x)\,dx = f(b) - f(a)
\end{equation}

Consider the series expansion:

$$f(x) = \sum_{n=0}^{\infty} \frac{f^{(n)}(a)}{n!}(x-a)^n$$`,
}
